package resultcode

import "sync"

// entry is one row of a static lookup table.
type entry struct {
	Name    string
	Message string
	Success bool
}

// schedTable holds Task Scheduler constants and the last-run-result values the
// scheduler reports for a task's action. Keyed by the unsigned bit pattern.
var schedTable = sync.OnceValue(func() map[uint32]entry {
	rows := []struct {
		code uint32
		entry
	}{
		{0x00000000, entry{"S_OK", "The operation completed successfully.", true}},
		{0x00000001, entry{"TASK_RESULT_INCORRECT_FUNCTION", "Incorrect function called or unknown function called.", false}},
		{0x00000002, entry{"TASK_RESULT_FILE_NOT_FOUND", "File not found.", false}},
		{0x0000000A, entry{"TASK_RESULT_BAD_ENVIRONMENT", "The environment is incorrect.", false}},

		{0x00041300, entry{"SCHED_S_TASK_READY", "The task is ready to run at its next scheduled time.", true}},
		{0x00041301, entry{"SCHED_S_TASK_RUNNING", "The task is currently running.", true}},
		{0x00041302, entry{"SCHED_S_TASK_DISABLED", "The task will not run at the scheduled times because it has been disabled.", true}},
		{0x00041303, entry{"SCHED_S_TASK_HAS_NOT_RUN", "The task has not yet run.", true}},
		{0x00041304, entry{"SCHED_S_TASK_NO_MORE_RUNS", "There are no more runs scheduled for this task.", true}},
		{0x00041305, entry{"SCHED_S_TASK_NOT_SCHEDULED", "One or more of the properties that are needed to run this task on a schedule have not been set.", true}},
		{0x00041306, entry{"SCHED_S_TASK_TERMINATED", "The last run of the task was terminated by the user.", true}},
		{0x00041307, entry{"SCHED_S_TASK_NO_VALID_TRIGGERS", "Either the task has no triggers or the existing triggers are disabled or not set.", true}},
		{0x00041308, entry{"SCHED_S_EVENT_TRIGGER", "Event triggers do not have set run times.", true}},
		{0x80041309, entry{"SCHED_E_TRIGGER_NOT_FOUND", "A task's trigger is not found.", false}},
		{0x8004130A, entry{"SCHED_E_TASK_NOT_READY", "One or more of the properties required to run this task have not been set.", false}},
		{0x8004130B, entry{"SCHED_E_TASK_NOT_RUNNING", "There is no running instance of the task.", false}},
		{0x8004130C, entry{"SCHED_E_SERVICE_NOT_INSTALLED", "The Task Scheduler service is not installed on this computer.", false}},
		{0x8004130D, entry{"SCHED_E_CANNOT_OPEN_TASK", "The task object could not be opened.", false}},
		{0x8004130E, entry{"SCHED_E_INVALID_TASK", "The object is either an invalid task object or is not a task object.", false}},
		{0x8004130F, entry{"SCHED_E_ACCOUNT_INFORMATION_NOT_SET", "No account information could be found in the Task Scheduler security database for the task indicated.", false}},
		{0x80041310, entry{"SCHED_E_ACCOUNT_NAME_NOT_FOUND", "Unable to establish existence of the account specified.", false}},
		{0x80041311, entry{"SCHED_E_ACCOUNT_DBASE_CORRUPT", "Corruption was detected in the Task Scheduler security database; the database has been reset.", false}},
		{0x80041312, entry{"SCHED_E_NO_SECURITY_SERVICES", "Task Scheduler security services are available only on Windows NT.", false}},
		{0x80041313, entry{"SCHED_E_UNKNOWN_OBJECT_VERSION", "The task object version is either unsupported or invalid.", false}},
		{0x80041314, entry{"SCHED_E_UNSUPPORTED_ACCOUNT_OPTION", "The task has been configured with an unsupported combination of account settings and run time options.", false}},
		{0x80041315, entry{"SCHED_E_SERVICE_NOT_RUNNING", "The Task Scheduler Service is not running.", false}},
		{0x80041316, entry{"SCHED_E_UNEXPECTEDNODE", "The task XML contains an unexpected node.", false}},
		{0x80041317, entry{"SCHED_E_NAMESPACE", "The task XML contains an element or attribute from an unexpected namespace.", false}},
		{0x80041318, entry{"SCHED_E_INVALIDVALUE", "The task XML contains a value which is incorrectly formatted or out of range.", false}},
		{0x80041319, entry{"SCHED_E_MISSINGNODE", "The task XML is missing a required element or attribute.", false}},
		{0x8004131A, entry{"SCHED_E_MALFORMEDXML", "The task XML is malformed.", false}},
		{0x0004131B, entry{"SCHED_S_SOME_TRIGGERS_FAILED", "The task is registered, but not all specified triggers will start the task.", true}},
		{0x0004131C, entry{"SCHED_S_BATCH_LOGON_PROBLEM", "The task is registered, but may fail to start. Batch logon privilege needs to be enabled for the task principal.", true}},
		{0x8004131D, entry{"SCHED_E_TOO_MANY_NODES", "The task XML contains too many nodes of the same type.", false}},
		{0x8004131E, entry{"SCHED_E_PAST_END_BOUNDARY", "The task cannot be started after the trigger end boundary.", false}},
		{0x8004131F, entry{"SCHED_E_ALREADY_RUNNING", "An instance of this task is already running.", false}},
		{0x80041320, entry{"SCHED_E_USER_NOT_LOGGED_ON", "The task will not run because the user is not logged on.", false}},
		{0x80041321, entry{"SCHED_E_INVALID_TASK_HASH", "The task image is corrupt or has been tampered with.", false}},
		{0x80041322, entry{"SCHED_E_SERVICE_NOT_AVAILABLE", "The Task Scheduler service is not available.", false}},
		{0x80041323, entry{"SCHED_E_SERVICE_TOO_BUSY", "The Task Scheduler service is too busy to handle your request. Please try again later.", false}},
		{0x80041324, entry{"SCHED_E_TASK_ATTEMPTED", "The Task Scheduler service attempted to run the task, but the task did not run due to one of the constraints in the task definition.", false}},
		{0x00041325, entry{"SCHED_S_TASK_QUEUED", "The Task Scheduler service has asked the task to run.", true}},
		{0x80041326, entry{"SCHED_E_TASK_DISABLED", "The task is disabled.", false}},
		{0x80041327, entry{"SCHED_E_TASK_NOT_V1_COMPAT", "The task has properties that are not compatible with previous versions of Windows.", false}},
		{0x80041328, entry{"SCHED_E_START_ON_DEMAND", "The task settings do not allow the task to start on demand.", false}},
		{0x80041329, entry{"SCHED_E_TASK_NOT_UBPM_COMPAT", "The combination of properties that the task is using is not compatible with the scheduling engine.", false}},
		{0x80041330, entry{"SCHED_E_DEPRECATED_FEATURE_USED", "The task definition uses a deprecated feature.", false}},

		{0x800704DD, entry{"TASK_RESULT_NOT_LOGGED_ON", "The service is not available (is 'Run only when a user is logged on' checked?).", false}},
		{0x800710E0, entry{"TASK_RESULT_REQUEST_REFUSED", "The operator or administrator has refused the request.", false}},
		{0xC000013A, entry{"STATUS_CONTROL_C_EXIT", "The application terminated as a result of a CTRL+C.", false}},
		{0xC06D007E, entry{"TASK_RESULT_SOFTWARE_EXCEPTION", "Unknown software exception.", false}},
	}

	m := make(map[uint32]entry, len(rows))
	for _, r := range rows {
		m[r.code] = r.entry
	}
	return m
})

// win32Table holds the base Win32 error codes that show up as task results.
var win32Table = sync.OnceValue(func() map[uint16]entry {
	rows := []struct {
		code uint16
		name string
		msg  string
	}{
		{0, "ERROR_SUCCESS", "The operation completed successfully."},
		{1, "ERROR_INVALID_FUNCTION", "Incorrect function."},
		{2, "ERROR_FILE_NOT_FOUND", "The system cannot find the file specified."},
		{3, "ERROR_PATH_NOT_FOUND", "The system cannot find the path specified."},
		{4, "ERROR_TOO_MANY_OPEN_FILES", "The system cannot open the file."},
		{5, "ERROR_ACCESS_DENIED", "Access is denied."},
		{6, "ERROR_INVALID_HANDLE", "The handle is invalid."},
		{8, "ERROR_NOT_ENOUGH_MEMORY", "Not enough memory resources are available to process this command."},
		{10, "ERROR_BAD_ENVIRONMENT", "The environment is incorrect."},
		{11, "ERROR_BAD_FORMAT", "An attempt was made to load a program with an incorrect format."},
		{13, "ERROR_INVALID_DATA", "The data is invalid."},
		{14, "ERROR_OUTOFMEMORY", "Not enough memory resources are available to complete this operation."},
		{15, "ERROR_INVALID_DRIVE", "The system cannot find the drive specified."},
		{18, "ERROR_NO_MORE_FILES", "There are no more files."},
		{19, "ERROR_WRITE_PROTECT", "The media is write protected."},
		{21, "ERROR_NOT_READY", "The device is not ready."},
		{32, "ERROR_SHARING_VIOLATION", "The process cannot access the file because it is being used by another process."},
		{33, "ERROR_LOCK_VIOLATION", "The process cannot access the file because another process has locked a portion of the file."},
		{38, "ERROR_HANDLE_EOF", "Reached the end of the file."},
		{50, "ERROR_NOT_SUPPORTED", "The request is not supported."},
		{53, "ERROR_BAD_NETPATH", "The network path was not found."},
		{64, "ERROR_NETNAME_DELETED", "The specified network name is no longer available."},
		{65, "ERROR_NETWORK_ACCESS_DENIED", "Network access is denied."},
		{67, "ERROR_BAD_NET_NAME", "The network name cannot be found."},
		{80, "ERROR_FILE_EXISTS", "The file exists."},
		{86, "ERROR_INVALID_PASSWORD", "The specified network password is not correct."},
		{87, "ERROR_INVALID_PARAMETER", "The parameter is incorrect."},
		{109, "ERROR_BROKEN_PIPE", "The pipe has been ended."},
		{112, "ERROR_DISK_FULL", "There is not enough space on the disk."},
		{122, "ERROR_INSUFFICIENT_BUFFER", "The data area passed to a system call is too small."},
		{123, "ERROR_INVALID_NAME", "The filename, directory name, or volume label syntax is incorrect."},
		{126, "ERROR_MOD_NOT_FOUND", "The specified module could not be found."},
		{127, "ERROR_PROC_NOT_FOUND", "The specified procedure could not be found."},
		{145, "ERROR_DIR_NOT_EMPTY", "The directory is not empty."},
		{161, "ERROR_BAD_PATHNAME", "The specified path is invalid."},
		{183, "ERROR_ALREADY_EXISTS", "Cannot create a file when that file already exists."},
		{193, "ERROR_BAD_EXE_FORMAT", "The application is not a valid Win32 application."},
		{203, "ERROR_ENVVAR_NOT_FOUND", "The system could not find the environment option that was entered."},
		{206, "ERROR_FILENAME_EXCED_RANGE", "The filename or extension is too long."},
		{232, "ERROR_NO_DATA", "The pipe is being closed."},
		{234, "ERROR_MORE_DATA", "More data is available."},
		{258, "WAIT_TIMEOUT", "The wait operation timed out."},
		{267, "ERROR_DIRECTORY", "The directory name is invalid."},
		{299, "ERROR_PARTIAL_COPY", "Only part of a ReadProcessMemory or WriteProcessMemory request was completed."},
		{740, "ERROR_ELEVATION_REQUIRED", "The requested operation requires elevation."},
		{998, "ERROR_NOACCESS", "Invalid access to memory location."},
		{1051, "ERROR_DEPENDENT_SERVICES_RUNNING", "A stop control has been sent to a service that other running services are dependent on."},
		{1052, "ERROR_INVALID_SERVICE_CONTROL", "The requested control is not valid for this service."},
		{1053, "ERROR_SERVICE_REQUEST_TIMEOUT", "The service did not respond to the start or control request in a timely fashion."},
		{1056, "ERROR_SERVICE_ALREADY_RUNNING", "An instance of the service is already running."},
		{1058, "ERROR_SERVICE_DISABLED", "The service cannot be started, either because it is disabled or because it has no enabled devices associated with it."},
		{1060, "ERROR_SERVICE_DOES_NOT_EXIST", "The specified service does not exist as an installed service."},
		{1061, "ERROR_SERVICE_CANNOT_ACCEPT_CTRL", "The service cannot accept control messages at this time."},
		{1062, "ERROR_SERVICE_NOT_ACTIVE", "The service has not been started."},
		{1064, "ERROR_EXCEPTION_IN_SERVICE", "An exception occurred in the service when handling the control request."},
		{1067, "ERROR_PROCESS_ABORTED", "The process terminated unexpectedly."},
		{1069, "ERROR_SERVICE_LOGON_FAILED", "The service did not start due to a logon failure."},
		{1114, "ERROR_DLL_INIT_FAILED", "A dynamic link library (DLL) initialization routine failed."},
		{1115, "ERROR_SHUTDOWN_IN_PROGRESS", "A system shutdown is in progress."},
		{1168, "ERROR_NOT_FOUND", "Element not found."},
		{1223, "ERROR_CANCELLED", "The operation was canceled by the user."},
		{1245, "ERROR_NOT_LOGGED_ON", "The operation being requested was not performed because the user has not logged on to the network."},
		{1311, "ERROR_NO_LOGON_SERVERS", "There are currently no logon servers available to service the logon request."},
		{1312, "ERROR_NO_SUCH_LOGON_SESSION", "A specified logon session does not exist. It may already have been terminated."},
		{1314, "ERROR_PRIVILEGE_NOT_HELD", "A required privilege is not held by the client."},
		{1317, "ERROR_NO_SUCH_USER", "The specified account does not exist."},
		{1326, "ERROR_LOGON_FAILURE", "The user name or password is incorrect."},
		{1327, "ERROR_ACCOUNT_RESTRICTION", "Account restrictions are preventing this user from signing in."},
		{1328, "ERROR_INVALID_LOGON_HOURS", "Your account has time restrictions that keep you from signing in right now."},
		{1330, "ERROR_PASSWORD_EXPIRED", "The password for this account has expired."},
		{1331, "ERROR_ACCOUNT_DISABLED", "This user can't sign in because this account is currently disabled."},
		{1332, "ERROR_NONE_MAPPED", "No mapping between account names and security IDs was done."},
		{1355, "ERROR_NO_SUCH_DOMAIN", "The specified domain either does not exist or could not be contacted."},
		{1385, "ERROR_LOGON_TYPE_NOT_GRANTED", "Logon failure: the user has not been granted the requested logon type at this computer."},
		{1392, "ERROR_FILE_CORRUPT", "The file or directory is corrupted and unreadable."},
		{1460, "ERROR_TIMEOUT", "This operation returned because the timeout period expired."},
		{1816, "ERROR_NOT_ENOUGH_QUOTA", "Not enough quota is available to process this command."},
		{1909, "ERROR_ACCOUNT_LOCKED_OUT", "The referenced account is currently locked out and may not be logged on to."},
		{2202, "ERROR_BAD_USERNAME", "The specified username is invalid."},
		{4320, "ERROR_REQUEST_REFUSED", "The operator or administrator has refused the request."},
	}

	m := make(map[uint16]entry, len(rows))
	for _, r := range rows {
		m[r.code] = entry{Name: r.name, Message: r.msg, Success: r.code == 0}
	}
	return m
})

// facilityNames maps HRESULT facility numbers to their symbolic names.
var facilityNames = map[uint16]string{
	0:  "FACILITY_NULL",
	1:  "FACILITY_RPC",
	2:  "FACILITY_DISPATCH",
	3:  "FACILITY_STORAGE",
	4:  "FACILITY_ITF",
	7:  "FACILITY_WIN32",
	8:  "FACILITY_WINDOWS",
	10: "FACILITY_CONTROL",
}
