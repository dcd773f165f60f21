package controlsocket

import (
	"path/filepath"
	"testing"

	"github.com/ielts-monitor/monitor/internal/domain"
)

func TestListenAndSendRequest_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.sock")

	var gotReq Request
	srv, err := Listen(path, func(req Request) Response {
		gotReq = req
		return Response{OK: true, State: "RUNNING"}
	})
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	cfg := domain.MonitorConfig{Cities: []string{"Tehran"}, ExamModels: []string{"IELTS"}}
	resp, err := SendRequest(path, Request{Command: "reconfigure", Config: cfg})
	if err != nil {
		t.Fatalf("SendRequest() error: %v", err)
	}
	if !resp.OK || resp.State != "RUNNING" {
		t.Errorf("SendRequest() = %+v, want OK=true State=RUNNING", resp)
	}
	if gotReq.Command != "reconfigure" {
		t.Errorf("handler saw Command = %q, want reconfigure", gotReq.Command)
	}
	if len(gotReq.Config.Cities) != 1 || gotReq.Config.Cities[0] != "Tehran" {
		t.Errorf("handler saw Config.Cities = %+v, want [Tehran]", gotReq.Config.Cities)
	}
}

func TestSend_UnknownCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "control.sock")

	srv, err := Listen(path, func(req Request) Response {
		return Response{OK: false, Message: "unknown command"}
	})
	if err != nil {
		t.Fatalf("Listen() error: %v", err)
	}
	defer srv.Close()
	go srv.Serve()

	resp, err := Send(path, "bogus")
	if err != nil {
		t.Fatalf("Send() error: %v", err)
	}
	if resp.OK {
		t.Error("Send() OK = true for an unknown command, want false")
	}
}
