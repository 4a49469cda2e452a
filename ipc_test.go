package main

import "testing"

func TestParseCommandLine_VerbOnly(t *testing.T) {
	req, err := parseCommandLine("Terminate\n")
	if err != nil {
		t.Fatalf("parseCommandLine returned error: %v", err)
	}
	if req.Verb != "Terminate" {
		t.Fatalf("Verb = %q, want Terminate", req.Verb)
	}
	if len(req.Args) != 0 {
		t.Fatalf("Args = %v, want empty", req.Args)
	}
}

func TestParseCommandLine_WithArgs(t *testing.T) {
	req, err := parseCommandLine("Image image:/tmp/splash.png offset:10,20")
	if err != nil {
		t.Fatalf("parseCommandLine returned error: %v", err)
	}
	if req.Verb != "Image" {
		t.Fatalf("Verb = %q, want Image", req.Verb)
	}
	if req.Args["image"] != "/tmp/splash.png" || req.Args["offset"] != "10,20" {
		t.Fatalf("Args = %v", req.Args)
	}
}

func TestParseCommandLine_EmptyLineErrors(t *testing.T) {
	if _, err := parseCommandLine("   \n"); err == nil {
		t.Fatal("expected error for empty command line")
	}
}

func TestParseCommandLine_MalformedArgErrors(t *testing.T) {
	if _, err := parseCommandLine("SwitchVT vt"); err == nil {
		t.Fatal("expected error for argument without a colon")
	}
}

func TestArgInt_MissingErrors(t *testing.T) {
	req := CommandRequest{Verb: "SwitchVT", Args: map[string]string{}}
	if _, err := argInt(req, "vt"); err == nil {
		t.Fatal("expected error for missing vt argument")
	}
}

func TestArgInt_ParsesValue(t *testing.T) {
	req := CommandRequest{Verb: "SwitchVT", Args: map[string]string{"vt": "3"}}
	v, err := argInt(req, "vt")
	if err != nil {
		t.Fatalf("argInt returned error: %v", err)
	}
	if v != 3 {
		t.Fatalf("v = %d, want 3", v)
	}
}

func TestArgXY_AbsentReturnsNotOK(t *testing.T) {
	req := CommandRequest{Verb: "Image", Args: map[string]string{"image": "x.png"}}
	_, _, ok, err := argXY(req, "offset")
	if err != nil {
		t.Fatalf("argXY returned error: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false when offset is absent")
	}
}

func TestArgXY_ParsesPair(t *testing.T) {
	req := CommandRequest{Verb: "Image", Args: map[string]string{"location": "-3,7"}}
	x, y, ok, err := argXY(req, "location")
	if err != nil {
		t.Fatalf("argXY returned error: %v", err)
	}
	if !ok || x != -3 || y != 7 {
		t.Fatalf("got (%d,%d,%v), want (-3,7,true)", x, y, ok)
	}
}

func TestArgXY_MalformedErrors(t *testing.T) {
	req := CommandRequest{Verb: "Image", Args: map[string]string{"offset": "nope"}}
	if _, _, _, err := argXY(req, "offset"); err == nil {
		t.Fatal("expected error for malformed offset")
	}
}

func TestSocketTransport_ListenerFdIsStableAcrossCalls(t *testing.T) {
	tr, err := NewSocketTransport("", 0, func(CommandRequest) CommandResult { return CommandResult{} })
	if err != nil {
		t.Fatalf("NewSocketTransport returned error: %v", err)
	}
	defer tr.Close()

	fd1, ok := tr.ListenerFd()
	if !ok {
		t.Fatal("ListenerFd returned ok=false for a freshly bound listener")
	}
	fd2, ok := tr.ListenerFd()
	if !ok || fd2 != fd1 {
		t.Fatalf("ListenerFd() = (%d,%v) then (%d,%v), want the same cached fd both times", fd1, true, fd2, ok)
	}
}

func TestSocketTransport_ConnFdAbsentBeforeAccept(t *testing.T) {
	tr, err := NewSocketTransport("", 0, func(CommandRequest) CommandResult { return CommandResult{} })
	if err != nil {
		t.Fatalf("NewSocketTransport returned error: %v", err)
	}
	defer tr.Close()

	if _, ok := tr.ConnFd(); ok {
		t.Fatal("ConnFd should report ok=false before any connection is accepted")
	}
}
