package resultcode

import (
	"math"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestTranslate_Zero(t *testing.T) {
	tr := New().Translate(0)

	if !tr.IsSuccess {
		t.Errorf("IsSuccess = false, want true")
	}
	if tr.HexCode != "0x00000000" {
		t.Errorf("HexCode = %q, want 0x00000000", tr.HexCode)
	}
	if tr.Source != SourceTaskScheduler {
		t.Errorf("Source = %q, want %q", tr.Source, SourceTaskScheduler)
	}
}

func TestTranslate_HexTextMatchesInteger(t *testing.T) {
	tr := New()

	tests := []struct {
		name string
		a, b any
	}{
		{"zero", "0x00000000", 0},
		{"upper prefix", "0X8004131F", uint32(0x8004131F)},
		{"decimal text", "267009", int64(0x41301)},
		{"negative decimal", "-2147216609", "0x8004131F"},
		{"int32 vs uint32", int32(-2147024891), uint32(0x80070005)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := tr.Translate(tt.a), tr.Translate(tt.b)
			if diff := cmp.Diff(a, b); diff != "" {
				t.Errorf("translations differ (-a +b):\n%s", diff)
			}
		})
	}
}

func TestTranslate_Tiers(t *testing.T) {
	tests := []struct {
		name         string
		input        any
		wantSource   Source
		wantConst    string
		wantSuccess  bool
		wantMeanings int
		wantFacility string
	}{
		{"task running", "0x00041301", SourceTaskScheduler, "SCHED_S_TASK_RUNNING", true, 1, ""},
		{"already running", "0x8004131F", SourceTaskScheduler, "SCHED_E_ALREADY_RUNNING", false, 1, ""},
		{"access denied hresult", "0x80070005", SourceWin32, "ERROR_ACCESS_DENIED", false, 1, "FACILITY_WIN32"},
		{"bare access denied", 5, SourceWin32, "ERROR_ACCESS_DENIED", false, 1, ""},
		{"not logged on collides", "0x800704DD", SourceTaskScheduler, "TASK_RESULT_NOT_LOGGED_ON", false, 2, ""},
		{"ctrl-c", "0xC000013A", SourceTaskScheduler, "STATUS_CONTROL_C_EXIT", false, 1, ""},
		{"unrecognized", "0x12345678", SourceUnknown, "", false, 1, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := Translate(tt.input)
			if tr.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", tr.Source, tt.wantSource)
			}
			if tr.ConstantName != tt.wantConst {
				t.Errorf("ConstantName = %q, want %q", tr.ConstantName, tt.wantConst)
			}
			if tr.IsSuccess != tt.wantSuccess {
				t.Errorf("IsSuccess = %v, want %v", tr.IsSuccess, tt.wantSuccess)
			}
			if len(tr.Meanings) != tt.wantMeanings {
				t.Errorf("len(Meanings) = %d, want %d: %v", len(tr.Meanings), tt.wantMeanings, tr.Meanings)
			}
			if tr.Facility != tt.wantFacility {
				t.Errorf("Facility = %q, want %q", tr.Facility, tt.wantFacility)
			}
		})
	}
}

func TestTranslate_HeadlineMirrorsFirstMeaning(t *testing.T) {
	for _, in := range []any{0, 1, 5, "0x80070005", "0x800710E0", "0xDEADBEEF", "garbage"} {
		tr := Translate(in)
		head := tr.Meanings[0]
		if tr.Message != head.Message || tr.Source != head.Source || tr.ConstantName != head.ConstantName ||
			tr.IsSuccess != head.IsSuccess || tr.Facility != head.Facility || tr.FacilityCode != head.FacilityCode {
			t.Errorf("Translate(%v) headline %+v does not mirror Meanings[0] %+v", in, tr, head)
		}
	}
}

func TestTranslate_SmallCodeCollision(t *testing.T) {
	tr := Translate(1)

	if len(tr.Meanings) < 2 {
		t.Fatalf("len(Meanings) = %d, want >= 2", len(tr.Meanings))
	}
	if tr.Meanings[0].Source != SourceTaskScheduler {
		t.Errorf("Meanings[0].Source = %q, want TaskScheduler", tr.Meanings[0].Source)
	}
	if tr.Meanings[1].ConstantName != "ERROR_INVALID_FUNCTION" {
		t.Errorf("Meanings[1].ConstantName = %q, want ERROR_INVALID_FUNCTION", tr.Meanings[1].ConstantName)
	}
	if !tr.Ambiguous() {
		t.Error("Ambiguous() = false, want true")
	}
}

func TestTranslate_Win32Facility(t *testing.T) {
	tr := Translate("0x800710E0")

	var win32 *Meaning
	for i := range tr.Meanings {
		if tr.Meanings[i].Source == SourceWin32 {
			win32 = &tr.Meanings[i]
		}
	}
	if win32 == nil {
		t.Fatalf("no Win32 meaning in %v", tr.Meanings)
	}
	if win32.FacilityCode != 7 {
		t.Errorf("FacilityCode = %d, want 7", win32.FacilityCode)
	}
	if win32.ConstantName != "ERROR_REQUEST_REFUSED" {
		t.Errorf("ConstantName = %q, want ERROR_REQUEST_REFUSED", win32.ConstantName)
	}
}

func TestTranslate_Unparseable(t *testing.T) {
	tests := []any{"", "0x", "0x123456789", "12abc", "99999999999", 3.5, nil, uint64(math.MaxUint32) + 1}

	for _, in := range tests {
		tr := Translate(in)
		if tr.Parsed {
			t.Errorf("Translate(%v).Parsed = true, want false", in)
		}
		if tr.Source != SourceUnknown {
			t.Errorf("Translate(%v).Source = %q, want Unknown", in, tr.Source)
		}
		if tr.IsSuccess {
			t.Errorf("Translate(%v).IsSuccess = true, want false", in)
		}
	}
}

func TestTranslate_HexRoundTrip(t *testing.T) {
	for _, x := range []int64{0, 1, 267009, -1, math.MinInt32, math.MaxInt32, math.MaxUint32, 0x80070005} {
		tr := Translate(x)
		if !tr.Parsed {
			t.Fatalf("Translate(%d) not parsed", x)
		}
		if got := Hex(tr.RawCode); got != tr.HexCode {
			t.Errorf("Hex(RawCode) = %q, HexCode = %q", got, tr.HexCode)
		}
		again := Translate(tr.HexCode)
		if again.RawCode != tr.RawCode {
			t.Errorf("Translate(%q).RawCode = %d, want %d", tr.HexCode, again.RawCode, tr.RawCode)
		}
	}
}

func TestDecompose(t *testing.T) {
	h := Decompose(int32(-2147024891)) // 0x80070005
	want := HRESULT{Severity: 1, Facility: 7, Code: 5}
	if h != want {
		t.Errorf("Decompose = %+v, want %+v", h, want)
	}
	if !h.Failed() {
		t.Error("Failed() = false, want true")
	}
}

func TestTranslator_MemoReturnsCopies(t *testing.T) {
	tr := New(WithMemo())

	first := tr.TranslateCode(1)
	first.Meanings[0].Message = "mutated"

	second := tr.TranslateCode(1)
	if second.Meanings[0].Message == "mutated" {
		t.Error("memoized translation shares Meanings with a previous result")
	}
}

func TestTranslator_MemoSkipsUnknownCodes(t *testing.T) {
	tr := New(WithMemo())

	for i := int32(0); i < 200000; i++ {
		if got := tr.TranslateCode(0x20000000 + i); got.Source != SourceUnknown {
			t.Fatalf("TranslateCode(%s) source = %s, want Unknown", Hex(0x20000000+i), got.Source)
		}
	}
	if n := tr.memoSize.Load(); n != 0 {
		t.Errorf("memo holds %d unknown codes, want 0", n)
	}

	tr.TranslateCode(0x41301)
	tr.TranslateCode(0x41301)
	if n := tr.memoSize.Load(); n != 1 {
		t.Errorf("memo size after a known code = %d, want 1", n)
	}
}

func TestTranslator_MemoLimit(t *testing.T) {
	tr := New(WithMemo())
	tr.memoLimit = 3

	// ERROR_ACCESS_DENIED wrapped with every combination of the HRESULT flag bits.
	for flags := uint32(0); flags < 32; flags++ {
		raw := int32(flags<<27 | 0x00070005)
		if got := tr.TranslateCode(raw); got.Source != SourceWin32 {
			t.Fatalf("TranslateCode(%s) source = %s, want Win32", Hex(raw), got.Source)
		}
	}
	if n := tr.memoSize.Load(); n != 3 {
		t.Errorf("memo size = %d, want limit of 3", n)
	}

	entries := 0
	tr.memo.Range(func(_, _ any) bool {
		entries++
		return true
	})
	if entries != 3 {
		t.Errorf("memo entries = %d, want 3", entries)
	}
}

func TestTranslator_ConcurrentUse(t *testing.T) {
	tr := New(WithMemo())
	want := New().TranslateCode(0x41301)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if diff := cmp.Diff(want, tr.TranslateString("0x00041301")); diff != "" {
				t.Errorf("concurrent translation differs:\n%s", diff)
			}
		}()
	}
	wg.Wait()
}
