package tool

import "testing"

func echoTool(name string) Tool {
	return Func{
		Def: Definition{Name: name, Description: "echoes args"},
		Handler: func(ctx Context, argsJSON string) (string, error) {
			return argsJSON, nil
		},
	}
}

func TestRegisterFindAll(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("alpha"), echoTool("beta")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if r.Size() != 2 {
		t.Errorf("Size() = %d, want 2", r.Size())
	}

	tl, ok := r.Find("alpha")
	if !ok {
		t.Fatal("Find(alpha) = not found")
	}
	out, err := tl.Call(Context{}, `{"x":1}`)
	if err != nil || out != `{"x":1}` {
		t.Errorf("Call() = (%q, %v), want (%q, nil)", out, err, `{"x":1}`)
	}

	if len(r.All()) != 2 {
		t.Errorf("All() returned %d definitions, want 2", len(r.All()))
	}

	if _, ok := r.Find("missing"); ok {
		t.Error("Find(missing) = found, want not found")
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("alpha")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(echoTool("alpha")); err == nil {
		t.Error("Register(duplicate) = nil error, want error")
	}
}

func TestRegisterRejectsEmptyName(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("")); err == nil {
		t.Error("Register(empty name) = nil error, want error")
	}
}

func TestRegisterSkipsNilTool(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err != nil {
		t.Fatalf("Register(nil) = %v, want nil error", err)
	}
	if r.Size() != 0 {
		t.Errorf("Size() = %d, want 0", r.Size())
	}
}

func TestFuncCallNilHandler(t *testing.T) {
	f := Func{Def: Definition{Name: "noop"}}
	if _, err := f.Call(Context{}, ""); err == nil {
		t.Error("Call() with nil handler = nil error, want error")
	}
}
