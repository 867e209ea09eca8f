// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package crashreport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSinkKeepsFirstCrash(t *testing.T) {
	var got []*Report
	s := NewSink(func(r *Report) { got = append(got, r) })
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	assert.Nil(t, s.Report())
	s.DelayCrash(nil, "ignored")
	assert.False(t, s.Pending())

	first := errors.New("bad chunk")
	s.DelayCrash(first, "Batching sections")
	s.DelayCrash(errors.New("second"), "Rendering section")
	assert.True(t, s.Pending())

	r := s.Report()
	require.NotNil(t, r)
	assert.Equal(t, "Batching sections", r.Label)
	assert.ErrorIs(t, r, first)
	assert.Equal(t, 1, r.Suppressed)
	assert.Equal(t, "Batching sections: bad chunk", r.Error())
	assert.Contains(t, r.String(), "Description: Batching sections")
	assert.Contains(t, r.String(), "2026-01-02T03:04:05Z")
	assert.Contains(t, r.String(), "(1 more failures suppressed)")
	assert.NotEmpty(t, r.Stack)
	assert.Equal(t, []*Report{r}, got)

	assert.False(t, s.Pending())
	assert.Nil(t, s.Report())
}

func TestSinkConcurrent(t *testing.T) {
	s := NewSink(nil)
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.DelayCrash(errors.New("boom"), "worker")
		}()
	}
	wg.Wait()
	r := s.Report()
	require.NotNil(t, r)
	assert.Equal(t, 15, r.Suppressed)
}
