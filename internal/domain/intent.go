package domain

type IntentKind string

const (
	IntentBase        IntentKind = "base"
	IntentDLC         IntentKind = "dlc"
	IntentRemaster    IntentKind = "remaster"
	IntentCompilation IntentKind = "compilation"
)

func (k IntentKind) String() string {
	return string(k)
}

// TitleIntent says what kind of product a catalog title names. Qualifier is the
// phrase that triggered the classification and BaseTitle the title with it removed.
type TitleIntent struct {
	Kind      IntentKind `json:"kind"`
	Qualifier string     `json:"qualifier,omitempty"`
	BaseTitle string     `json:"base_title,omitempty"`
}

func (ti *TitleIntent) IsBase() bool {
	if ti == nil {
		return true
	}
	return ti.Kind == IntentBase || ti.Kind == ""
}

// HasAlternate reports whether the intent yields a different title worth querying.
func (ti *TitleIntent) HasAlternate() bool {
	if ti == nil || ti.IsBase() {
		return false
	}
	return ti.BaseTitle != ""
}
