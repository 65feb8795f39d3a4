package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fefal-etl/internal/pipeline"
)

func TestSessionsEvictOldest(t *testing.T) {
	s := NewSessions(2)
	first := s.Add("a.xlsx", &pipeline.Result{Year: 1})
	second := s.Add("b.xlsx", &pipeline.Result{Year: 2})
	third := s.Add("c.xlsx", &pipeline.Result{Year: 3})

	_, ok := s.Get(first.ID)
	assert.False(t, ok)

	got, ok := s.Get(third.ID)
	require.True(t, ok)
	assert.Equal(t, "c.xlsx", got.Source)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, third.ID, list[1].ID)
}

func TestSessionsUnbounded(t *testing.T) {
	s := NewSessions(0)
	for i := 0; i < 5; i++ {
		s.Add("x.csv", &pipeline.Result{})
	}
	assert.Len(t, s.List(), 5)
}

func TestSessionView(t *testing.T) {
	s := NewSessions(1)
	sess := s.Add("x.csv", &pipeline.Result{Year: 2024})
	var year int
	require.NoError(t, sess.View(func(res *pipeline.Result) error {
		year = res.Year
		return nil
	}))
	assert.Equal(t, 2024, year)
}
