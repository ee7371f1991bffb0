package status

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "channel closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
	}
	return Message{}
}

func TestFeedDeliversInOrderWithoutBlockingPublisher(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe()
	defer cancel()

	// nobody reads while publishing
	const n = 500
	for i := 0; i < n; i++ {
		feed.Text("line %d", i)
	}

	for i := 0; i < n; i++ {
		msg := receive(t, ch)
		assert.Equal(t, fmt.Sprintf("line %d", i), msg.Text)
		assert.EqualValues(t, i+1, msg.Seq)
		assert.Equal(t, KindText, msg.Kind)
	}
}

func TestFeedEverySubscriberSeesEveryMessage(t *testing.T) {
	feed := NewFeed()
	a, cancelA := feed.Subscribe()
	defer cancelA()
	b, cancelB := feed.Subscribe()
	defer cancelB()

	feed.State(false, true)
	feed.Failure(errors.New("disk full"))
	feed.Report("/tmp/WindowLog.html")

	for _, ch := range []<-chan Message{a, b} {
		state := receive(t, ch)
		assert.Equal(t, KindState, state.Kind)
		assert.False(t, state.CanStart)
		assert.True(t, state.CanStop)

		failure := receive(t, ch)
		assert.Equal(t, KindFailure, failure.Kind)
		assert.Equal(t, "disk full", failure.Text)

		report := receive(t, ch)
		assert.Equal(t, KindReport, report.Kind)
		assert.Equal(t, "/tmp/WindowLog.html", report.ReportPath)
		path, ok := ParseReportPath(report.Text)
		assert.True(t, ok)
		assert.Equal(t, "/tmp/WindowLog.html", path)
	}
}

func TestFeedCancelClosesChannel(t *testing.T) {
	feed := NewFeed()
	ch, cancel := feed.Subscribe()
	cancel()
	feed.Text("after cancel")

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
}

func TestFeedCloseFlushesPending(t *testing.T) {
	feed := NewFeed()
	ch, _ := feed.Subscribe()
	feed.Text("one")
	feed.Text("two")
	feed.Close()
	feed.Text("ignored")

	var got []string
	for msg := range ch {
		got = append(got, msg.Text)
	}
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestFeedDrainedDetachDeliversQueued(t *testing.T) {
	feed := NewFeed()
	ch, detach := feed.SubscribeDrained()
	other, cancel := feed.Subscribe()
	defer cancel()

	feed.Text("Leaving tracking loop...")
	feed.Report("/tmp/WindowLog.html")
	detach()
	detach()
	feed.Text("after detach")

	var got []Message
	for msg := range ch {
		got = append(got, msg)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "Leaving tracking loop...", got[0].Text)
	assert.Equal(t, ReportPrefix+"/tmp/WindowLog.html", got[1].Text)

	// the other subscriber is unaffected
	assert.Equal(t, "Leaving tracking loop...", receive(t, other).Text)
	receive(t, other)
	assert.Equal(t, "after detach", receive(t, other).Text)
}

func TestFeedDrainedDetachAfterClose(t *testing.T) {
	feed := NewFeed()
	ch, detach := feed.SubscribeDrained()
	feed.Text("one")
	feed.Close()
	detach()

	var got []string
	for msg := range ch {
		got = append(got, msg.Text)
	}
	assert.Equal(t, []string{"one"}, got)
}

func TestParseReportPath(t *testing.T) {
	_, ok := ParseReportPath("Tracking started...")
	assert.False(t, ok)
	path, ok := ParseReportPath(ReportPrefix + `C:\Users\me\Documents\WindowTracker\WindowLog.html`)
	assert.True(t, ok)
	assert.Equal(t, `C:\Users\me\Documents\WindowTracker\WindowLog.html`, path)
}

func TestHistoryTracksFlagsAndLimit(t *testing.T) {
	h := NewHistory(3)
	canStart, canStop := h.Flags()
	assert.True(t, canStart)
	assert.False(t, canStop)

	h.Add(Message{Seq: 1, Kind: KindState, CanStart: false, CanStop: true})
	h.Add(Message{Seq: 2, Kind: KindText, Text: "a"})
	h.Add(Message{Seq: 3, Kind: KindText, Text: "b"})
	h.Add(Message{Seq: 4, Kind: KindReport, ReportPath: "/r.html"})

	canStart, canStop = h.Flags()
	assert.False(t, canStart)
	assert.True(t, canStop)
	assert.Equal(t, "/r.html", h.LastReport())

	msgs := h.Messages()
	require.Len(t, msgs, 3)
	assert.EqualValues(t, 2, msgs[0].Seq)
	assert.EqualValues(t, 4, msgs[2].Seq)
}

func TestHistoryFollow(t *testing.T) {
	feed := NewFeed()
	h := NewHistory(10)
	stop := h.Follow(feed)
	defer stop()

	feed.Text("hello")
	require.Eventually(t, func() bool { return len(h.Messages()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", h.Messages()[0].Text)
}
