package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for line")
	}
	return ""
}

func TestSerialMux_SubscribeUnique(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())

	id1, ch1 := mux.Subscribe()
	id2, ch2 := mux.Subscribe()
	if id1 == "" || id1 == id2 {
		t.Fatalf("subscription ids %q and %q should be distinct and non-empty", id1, id2)
	}
	if cap(ch1) != SubscriberBuffer || cap(ch2) != SubscriberBuffer {
		t.Errorf("subscriber channels should be buffered to %d", SubscriberBuffer)
	}

	mux.Unsubscribe(id1)
	if _, ok := <-ch1; ok {
		t.Error("expected unsubscribed channel to be closed")
	}
	mux.Unsubscribe(id1) // no-op
	if len(mux.subscribers) != 1 {
		t.Errorf("subscribers = %d, want 1", len(mux.subscribers))
	}
}

func TestSerialMux_MonitorBroadcasts(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, a := mux.Subscribe()
	_, b := mux.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- mux.Monitor(ctx) }()

	port.AddReadData("S1 1.0 2.0 3.0\r\nS2 4.0 5.0 6.0\n")

	for _, ch := range []chan string{a, b} {
		if got := recv(t, ch); got != "S1 1.0 2.0 3.0" {
			t.Errorf("first line = %q", got)
		}
		if got := recv(t, ch); got != "S2 4.0 5.0 6.0" {
			t.Errorf("second line = %q", got)
		}
	}

	cancel()
	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Monitor() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Monitor did not return after cancel")
	}
}

func TestSerialMux_MonitorEndsAtEOF(t *testing.T) {
	mux := NewReplaySerialMux(strings.NewReader("F1\nF2\n"), 0)
	_, ch := mux.Subscribe()

	if err := mux.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor() = %v, want nil at end of stream", err)
	}
	if got := recv(t, ch); got != "F1" {
		t.Errorf("got %q", got)
	}
	if got := recv(t, ch); got != "F2" {
		t.Errorf("got %q", got)
	}
}

func TestSerialMux_DropsWhenSubscriberFull(t *testing.T) {
	mux := NewSerialMux(NewTestableSerialPort())
	_, ch := mux.Subscribe()

	for i := 0; i < SubscriberBuffer+3; i++ {
		mux.broadcast("line")
	}
	if got := mux.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
	if len(ch) != SubscriberBuffer {
		t.Errorf("buffered = %d, want %d", len(ch), SubscriberBuffer)
	}
}

func TestSerialMux_SendCommand(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.SendCommand("U1"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if err := mux.SendCommand("C\n"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if got := port.Written(); got != "U1\r\nC\r\n" {
		t.Errorf("written = %q", got)
	}

	port.FailNextWrite(errors.New("unplugged"))
	if err := mux.SendCommand("C"); err == nil {
		t.Error("expected write error")
	}
}

func TestSerialMux_Initialise(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)

	if err := mux.Initialise(); err != nil {
		t.Fatalf("Initialise() error = %v", err)
	}
	want := strings.Join(TrackerInitCommands, "\r\n") + "\r\n"
	if got := port.Written(); got != want {
		t.Errorf("written = %q, want %q", got, want)
	}

	port.FailNextWrite(errors.New("unplugged"))
	if err := mux.Initialise(); err == nil || !strings.Contains(err.Error(), "U1") {
		t.Errorf("Initialise() error = %v, want failure naming the first command", err)
	}
}

func TestSerialMux_CloseClosesSubscribersAndPort(t *testing.T) {
	port := NewTestableSerialPort()
	mux := NewSerialMux(port)
	_, ch := mux.Subscribe()

	if err := mux.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected subscriber channel to be closed")
	}
	if err := mux.SendCommand("C"); err == nil {
		t.Error("expected write to closed port to fail")
	}
}

func TestReplayPort_PacesLines(t *testing.T) {
	p := NewReplayPort(strings.NewReader("a\nb\n"), 5*time.Millisecond)
	defer p.Close()

	buf := make([]byte, 16)
	start := time.Now()
	n, err := p.Read(buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(buf[:n]) != "a\n" {
		t.Errorf("first read = %q", buf[:n])
	}
	if time.Since(start) < 4*time.Millisecond {
		t.Error("replay did not wait for the first interval")
	}

	if _, err := p.Write([]byte("C\r\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if p.Written() != "C\r\n" {
		t.Errorf("Written() = %q", p.Written())
	}
}
