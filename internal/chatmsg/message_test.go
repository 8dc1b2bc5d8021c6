package chatmsg

import "testing"

func TestConstructors(t *testing.T) {
	if m := NewSystem("sys"); m.Role != RoleSystem || m.Content != "sys" {
		t.Errorf("NewSystem() = %+v", m)
	}
	if m := NewUser("hi"); m.Role != RoleUser || m.Content != "hi" {
		t.Errorf("NewUser() = %+v", m)
	}
	if m := NewAssistant("hello"); m.Role != RoleAssistant || m.Content != "hello" {
		t.Errorf("NewAssistant() = %+v", m)
	}
	calls := []ToolCall{{ID: "1", ToolName: "search"}}
	if m := NewAssistantToolCalls(calls); m.Role != RoleAssistant || len(m.ToolCalls) != 1 {
		t.Errorf("NewAssistantToolCalls() = %+v", m)
	}
	if m := NewToolResult("1", "result"); m.Role != RoleTool || m.ToolCallID != "1" || m.Content != "result" {
		t.Errorf("NewToolResult() = %+v", m)
	}
}

func TestChatStateCloneIsIndependent(t *testing.T) {
	orig := &ChatState{System: "sys", History: []Message{NewUser("hi")}}
	clone := orig.Clone()
	clone.Append(NewAssistant("reply"))

	if len(orig.History) != 1 {
		t.Errorf("original History mutated by clone append: len=%d", len(orig.History))
	}
	if len(clone.History) != 2 {
		t.Errorf("clone History = %d, want 2", len(clone.History))
	}
}

func TestChatStateAppend(t *testing.T) {
	s := &ChatState{}
	s.Append(NewUser("hi"))
	if len(s.History) != 1 || s.History[0].Content != "hi" {
		t.Errorf("Append() = %+v", s.History)
	}
}
