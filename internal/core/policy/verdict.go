package policy

import "fmt"

// Verdict is the terminal outcome of one evaluation: an outcome code plus
// the fixed detail string of the rule that produced it. Details are static
// per rule so that identical contexts always yield byte-identical verdicts.
type Verdict struct {
	Code   Code
	Detail string
}

// Accept returns the accepting verdict.
func Accept() Verdict {
	return Verdict{Code: CodeAccepted}
}

// Reject returns a rejecting verdict with the rule's detail.
func Reject(code Code, detail string) Verdict {
	return Verdict{Code: code, Detail: detail}
}

// Accepted reports whether the verdict admits the transaction.
func (v Verdict) Accepted() bool {
	return v.Code.IsAccepted()
}

// String renders "Accepted" or "Code: detail".
func (v Verdict) String() string {
	if v.Accepted() {
		return v.Code.String()
	}
	return fmt.Sprintf("%s: %s", v.Code, v.Detail)
}
