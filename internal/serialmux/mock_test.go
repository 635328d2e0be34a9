package serialmux

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewReplaySerialMux(t *testing.T) {
	frame := []byte("Snapshot: 1,2\n512,1024\n")
	mux := NewReplaySerialMux(frame, 10*time.Millisecond)

	_, ch := mux.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- mux.Monitor(ctx) }()

	// Two replays of the frame.
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 4 {
		select {
		case line := <-ch:
			got = append(got, line)
		case <-timeout:
			t.Fatalf("timeout after %q", got)
		}
	}
	want := "Snapshot: 1,2|512,1024|Snapshot: 1,2|512,1024"
	if strings.Join(got, "|") != want {
		t.Errorf("lines = %q, want %q", got, want)
	}

	if err := mux.SendCommand("rate 20"); err != nil {
		t.Errorf("SendCommand returned error: %v", err)
	}
	if got := mux.port.Written(); got != "rate 20\n" {
		t.Errorf("Written() = %q", got)
	}

	if err := mux.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Monitor did not exit after Close")
	}
}

func TestNewRealSerialMux_InvalidPath(t *testing.T) {
	mux, err := NewRealSerialMux("/dev/nonexistent-serial-port-12345", PortOptions{})
	if err == nil {
		mux.Close()
		t.Fatal("Expected error when opening non-existent serial port")
	}
	if mux != nil {
		t.Error("Expected nil mux when error is returned")
	}
}

func TestNewRealSerialMux_InvalidOptions(t *testing.T) {
	if _, err := NewRealSerialMux("/dev/null", PortOptions{Parity: "mark"}); err == nil {
		t.Error("Expected error for unsupported parity")
	}
}

func TestTestableSerialPort(t *testing.T) {
	port := NewTestableSerialPort()
	port.AddReadData([]byte("1,2\n"))

	buf := make([]byte, 16)
	n, err := port.Read(buf)
	if err != nil || string(buf[:n]) != "1,2\n" {
		t.Errorf("Read() = %q, %v", buf[:n], err)
	}
	if _, err := port.Write([]byte("start\n")); err != nil {
		t.Errorf("Write returned error: %v", err)
	}
	if got := string(port.GetWrittenData()); got != "start\n" {
		t.Errorf("GetWrittenData() = %q", got)
	}
	if port.ReadCalls != 1 || port.WriteCalls != 1 {
		t.Errorf("calls = %d reads, %d writes", port.ReadCalls, port.WriteCalls)
	}

	// Scripted errors fire once.
	port.ReadError = errors.New("read error")
	if _, err := port.Read(buf); err == nil || err.Error() != "read error" {
		t.Errorf("Expected 'read error', got: %v", err)
	}
	port.WriteError = errors.New("write error")
	if _, err := port.Write([]byte("x")); err == nil {
		t.Error("Expected write error")
	}
	if _, err := port.Write([]byte("x")); err != nil {
		t.Errorf("Expected write error to be cleared, got: %v", err)
	}
}

func TestTestableSerialPort_CloseUnblocksRead(t *testing.T) {
	port := NewTestableSerialPort()
	port.BlockReads = true

	done := make(chan error, 1)
	go func() {
		_, err := port.Read(make([]byte, 8))
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Read returned early: %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	port.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Error("Expected error reading from closed port")
		}
	case <-time.After(time.Second):
		t.Fatal("Read still blocked after Close")
	}

	if _, err := port.Write([]byte("x")); err == nil {
		t.Error("Expected error writing to closed port")
	}
}
