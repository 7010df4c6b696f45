package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestMessageFallsBackToCode() {
	s.Equal("event not found", (&Error{Code: CodeNotFound, Message: "event not found"}).Error())
	s.Equal("service_unavailable", (&Error{Code: CodeServiceUnavailable}).Error())
}

func (s *DomainErrorsSuite) TestMatching() {
	s.Run("errors.Is matches by code through a chain", func() {
		inner := New(CodeForbidden, "only the organizer may edit")
		outer := fmt.Errorf("update event: %w", inner)
		s.True(errors.Is(outer, &Error{Code: CodeForbidden}))
		s.False(errors.Is(outer, &Error{Code: CodeNotFound}))
	})

	s.Run("plain errors never match", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not_found")))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("keeps the code of a wrapped domain error", func() {
		original := New(CodeCommunication, "directory unreachable")
		wrapped := Wrap(original, CodeInternal, "resolve organizer")

		s.True(HasCode(wrapped, CodeCommunication))
		s.Equal("resolve organizer", wrapped.Error())
		s.ErrorIs(wrapped, original)
	})

	s.Run("applies the given code to foreign errors", func() {
		root := errors.New("connection reset")
		wrapped := Wrap(root, CodeInternal, "insert event")

		s.True(HasCode(wrapped, CodeInternal))
		s.ErrorIs(wrapped, root)
	})
}

func (s *DomainErrorsSuite) TestCodeOf() {
	s.Equal(CodeConflict, CodeOf(fmt.Errorf("ctx: %w", New(CodeConflict, "x"))))
	s.Equal(CodeInternal, CodeOf(errors.New("boom")))
	s.False(HasCode(nil, CodeNotFound))
}
