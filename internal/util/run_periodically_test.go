package util_test

import (
	"context"
	"testing"
	"time"

	"github.com/salesforge-io/salesforge/internal/util"
	"github.com/stretchr/testify/assert"
)

func TestRunPeriodically(t *testing.T) {
	// Crudely check that this runs a bunch of times when running every
	// nanosecond within 100 milliseconds
	count := 0
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond*100)
	defer cancel()
	util.RunPeriodically(ctx, time.Nanosecond, func() {
		count++
	})
	assert.Greater(t, count, 2)

	// Make sure this only runs once
	count = 0
	ctx, cancel = context.WithTimeout(context.Background(), time.Millisecond*150)
	defer cancel()
	util.RunPeriodically(ctx, time.Millisecond*100, func() { count++ })
	assert.Equal(t, count, 1)
}
