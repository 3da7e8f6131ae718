package review

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeedDeliversAndDetaches(t *testing.T) {
	require := require.New(t)
	f := NewFeed()
	a, stopA := f.Subscribe(1)
	b, stopB := f.Subscribe(4)
	defer stopB()

	f.Publish(Transition{AdID: "1", From: Idle, To: Previewing})
	f.Publish(Transition{AdID: "1", From: Previewing, To: Submitting})

	require.Equal(Previewing, (<-a).To)
	require.Len(a, 0)
	require.Equal(Previewing, (<-b).To)
	require.Equal(Submitting, (<-b).To)

	stopA()
	stopA()
	_, open := <-a
	require.False(open)
	f.Publish(Transition{AdID: "1", From: Submitting, To: Previewing})
	require.Len(b, 1)
}
