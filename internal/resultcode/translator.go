package resultcode

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Source identifies which decoding tier produced an interpretation.
type Source string

const (
	SourceTaskScheduler Source = "TaskScheduler"
	SourceWin32         Source = "Win32"
	SourceUnknown       Source = "Unknown"
)

const facilityWin32 = 7

// maxMemoEntries bounds the memo. Only codes found in a table are cached, so
// the bound is reached only by the HRESULT flag variants of known codes.
const maxMemoEntries = 4096

// Meaning is one candidate interpretation of a status value.
type Meaning struct {
	Source       Source `json:"source"`
	Message      string `json:"message"`
	ConstantName string `json:"constant_name,omitempty"`
	IsSuccess    bool   `json:"is_success"`
	Facility     string `json:"facility,omitempty"`
	FacilityCode int    `json:"facility_code,omitempty"`
}

func (m Meaning) String() string {
	if m.ConstantName != "" {
		return fmt.Sprintf("%s %s: %s", m.Source, m.ConstantName, m.Message)
	}
	return fmt.Sprintf("%s: %s", m.Source, m.Message)
}

// Translation is the decoded form of a single status value. The headline
// fields always mirror Meanings[0]; FacilityCode is only meaningful when
// Facility is set.
type Translation struct {
	Parsed       bool      `json:"parsed"`
	RawCode      int32     `json:"raw_code"`
	HexCode      string    `json:"hex_code"`
	Message      string    `json:"message"`
	Source       Source    `json:"source"`
	ConstantName string    `json:"constant_name,omitempty"`
	IsSuccess    bool      `json:"is_success"`
	Facility     string    `json:"facility,omitempty"`
	FacilityCode int       `json:"facility_code,omitempty"`
	Meanings     []Meaning `json:"meanings"`
}

// Ambiguous reports whether more than one interpretation was found.
func (t Translation) Ambiguous() bool {
	return len(t.Meanings) > 1
}

func (t Translation) String() string {
	if t.HexCode == "" {
		return t.Message
	}
	return fmt.Sprintf("%s %s", t.HexCode, t.Meanings[0])
}

func (t Translation) clone() Translation {
	t.Meanings = append([]Meaning(nil), t.Meanings...)
	return t
}

// HRESULT is the decomposed layout of a 32-bit status value.
type HRESULT struct {
	Severity uint8  // bit 31
	Facility uint16 // bits 16-26
	Code     uint16 // bits 0-15
}

// Decompose splits raw into its HRESULT fields.
func Decompose(raw int32) HRESULT {
	bits := uint32(raw)
	return HRESULT{
		Severity: uint8(bits >> 31),
		Facility: uint16((bits >> 16) & 0x7FF),
		Code:     uint16(bits & 0xFFFF),
	}
}

// Failed reports whether the severity bit is set.
func (h HRESULT) Failed() bool {
	return h.Severity == 1
}

// Translator decodes status values. The zero value is ready to use and
// safe for concurrent use.
type Translator struct {
	memo      *sync.Map // int32 -> Translation; nil when memoization is off
	memoLimit int64
	memoSize  atomic.Int64
}

// Option configures a Translator.
type Option func(*Translator)

// WithMemo caches translations of recognized codes. Unknown codes are
// decoded on every call.
func WithMemo() Option {
	return func(t *Translator) {
		t.memo = &sync.Map{}
		t.memoLimit = maxMemoEntries
	}
}

// New creates a Translator.
func New(opts ...Option) *Translator {
	t := &Translator{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Translate decodes an integer, decimal text or hex text status value.
// Unparseable input yields an Unknown translation rather than an error.
func (t *Translator) Translate(v any) Translation {
	raw, ok := Parse(v)
	if !ok {
		return unparseable(v)
	}
	return t.TranslateCode(raw)
}

// TranslateString decodes decimal or 0x-prefixed hex status text.
func (t *Translator) TranslateString(s string) Translation {
	raw, ok := ParseString(s)
	if !ok {
		return unparseable(s)
	}
	return t.TranslateCode(raw)
}

// TranslateCode decodes a canonical raw status value.
func (t *Translator) TranslateCode(raw int32) Translation {
	if t.memo == nil {
		return decode(raw)
	}
	if cached, ok := t.memo.Load(raw); ok {
		return cached.(Translation).clone()
	}
	tr := decode(raw)
	if tr.Source != SourceUnknown && t.memoSize.Load() < t.memoLimit {
		if _, loaded := t.memo.LoadOrStore(raw, tr); !loaded {
			t.memoSize.Add(1)
		}
	}
	return tr.clone()
}

var defaultTranslator = New(WithMemo())

// Translate decodes v with the shared package translator.
func Translate(v any) Translation {
	return defaultTranslator.Translate(v)
}

// TranslateString decodes s with the shared package translator.
func TranslateString(s string) Translation {
	return defaultTranslator.TranslateString(s)
}

// TranslateCode decodes raw with the shared package translator.
func TranslateCode(raw int32) Translation {
	return defaultTranslator.TranslateCode(raw)
}

func decode(raw int32) Translation {
	var meanings []Meaning

	// Tier 1: task scheduler constants and reported last-run results.
	if e, ok := schedTable()[uint32(raw)]; ok {
		meanings = append(meanings, Meaning{
			Source:       SourceTaskScheduler,
			Message:      e.Message,
			ConstantName: e.Name,
			IsSuccess:    e.Success,
		})
	}

	// Tier 2: Win32 error wrapped in an HRESULT.
	hr := Decompose(raw)
	if hr.Facility == facilityWin32 {
		if e, ok := win32Table()[hr.Code]; ok {
			meanings = append(meanings, Meaning{
				Source:       SourceWin32,
				Message:      e.Message,
				ConstantName: e.Name,
				IsSuccess:    !hr.Failed(),
				Facility:     facilityName(hr.Facility),
				FacilityCode: int(hr.Facility),
			})
		}
	}

	// Tier 3: bare Win32 error. Also appended after a tier 1 hit so that
	// colliding small codes keep both meanings, with tier 1 ranked first.
	if raw >= 0 && raw <= 0xFFFF {
		if e, ok := win32Table()[uint16(raw)]; ok {
			meanings = append(meanings, Meaning{
				Source:       SourceWin32,
				Message:      e.Message,
				ConstantName: e.Name,
				IsSuccess:    e.Success,
			})
		}
	}

	if len(meanings) == 0 {
		meanings = append(meanings, Meaning{
			Source:    SourceUnknown,
			Message:   fmt.Sprintf("Unrecognized status code %s.", Hex(raw)),
			IsSuccess: raw == 0,
		})
	}

	return fromMeanings(true, raw, Hex(raw), meanings)
}

func unparseable(v any) Translation {
	return fromMeanings(false, 0, "", []Meaning{{
		Source:  SourceUnknown,
		Message: fmt.Sprintf("Unrecognized status value %q.", fmt.Sprint(v)),
	}})
}

func fromMeanings(parsed bool, raw int32, hex string, meanings []Meaning) Translation {
	head := meanings[0]
	return Translation{
		Parsed:       parsed,
		RawCode:      raw,
		HexCode:      hex,
		Message:      head.Message,
		Source:       head.Source,
		ConstantName: head.ConstantName,
		IsSuccess:    head.IsSuccess,
		Facility:     head.Facility,
		FacilityCode: head.FacilityCode,
		Meanings:     meanings,
	}
}

func facilityName(f uint16) string {
	if name, ok := facilityNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FACILITY_%d", f)
}
