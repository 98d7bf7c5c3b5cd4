package accounts

import (
	"fmt"
	"strings"

	"github.com/schoolpaypro/ledger/internal/id"
)

// NextCode returns the code for the next child of parentID: the parent code
// followed by the highest existing child suffix plus one, zero-padded to
// id.SuffixWidth. With no children the suffix is "01".
//
// Children whose code does not extend the parent code, or whose suffix does
// not start with a digit, are ignored. If the generated code is already in use
// elsewhere in the forest a *DuplicateCodeError is returned instead.
func (t *Tree) NextCode(parentID string) (string, error) {
	parent, ok := t.Get(parentID)
	if !ok || parentID == "" {
		return "", fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
	}

	prefix := parent.Code
	maxSuffix := 0
	for _, a := range t.accounts {
		if a.ParentID != parentID || !strings.HasPrefix(a.Code, prefix) {
			continue
		}
		n, ok := id.LeadingInt(a.Code[len(prefix):])
		if !ok {
			continue
		}
		if n > maxSuffix {
			maxSuffix = n
		}
	}

	code := id.ChildCode(prefix, maxSuffix+1)
	if i, taken := t.byCode[code]; taken {
		return "", &DuplicateCodeError{Code: code, ExistingID: t.accounts[i].ID}
	}
	return code, nil
}
