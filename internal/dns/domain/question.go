package domain

import (
	"fmt"

	"github.com/haukened/simpledns/internal/dns/common/utils"
)

// Question is a single entry of the question section.
type Question struct {
	Name  string
	Type  RRType
	Class RRClass
}

// NewQuestion constructs a class IN Question and validates it.
func NewQuestion(name string, rrtype RRType) (Question, error) {
	q := Question{
		Name:  name,
		Type:  rrtype,
		Class: RRClassIN,
	}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

// Validate checks whether the Question fields are structurally valid.
func (q Question) Validate() error {
	if q.Type == 0 {
		return fmt.Errorf("question type must not be zero")
	}
	if q.Class == 0 {
		return fmt.Errorf("question class must not be zero")
	}
	return nil
}

// Matches reports whether o asks the same thing as q. Names compare
// case-insensitively (RFC 4343).
func (q Question) Matches(o Question) bool {
	return q.Type == o.Type &&
		q.Class == o.Class &&
		utils.CanonicalDNSName(q.Name) == utils.CanonicalDNSName(o.Name)
}

// String renders the question in presentation form, e.g. "example.com. IN A".
func (q Question) String() string {
	return utils.PresentationDNSName(q.Name) + " " + q.Class.String() + " " + q.Type.String()
}
