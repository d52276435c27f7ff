package server

import (
	"github.com/funvibe/shadevm/internal/host"
	"github.com/jhump/protoreflect/dynamic"
)

// Field accessors for dynamic messages. Names are fixed by shadevm.proto,
// so a missing field is a programming error and GetFieldByName may panic.

func stringField(m *dynamic.Message, name string) string {
	s, _ := m.GetFieldByName(name).(string)
	return s
}

func int32Field(m *dynamic.Message, name string) int32 {
	n, _ := m.GetFieldByName(name).(int32)
	return n
}

func boolField(m *dynamic.Message, name string) bool {
	b, _ := m.GetFieldByName(name).(bool)
	return b
}

func messageField(m *dynamic.Message, name string) *dynamic.Message {
	sub, _ := m.GetFieldByName(name).(*dynamic.Message)
	return sub
}

func messages(m *dynamic.Message, name string) []*dynamic.Message {
	var out []*dynamic.Message
	for _, v := range repeated(m, name) {
		if sub, ok := v.(*dynamic.Message); ok {
			out = append(out, sub)
		}
	}
	return out
}

func stringsField(m *dynamic.Message, name string) []string {
	var out []string
	for _, v := range repeated(m, name) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func floatsField(m *dynamic.Message, name string) []float64 {
	var out []float64
	for _, v := range repeated(m, name) {
		if f, ok := v.(float64); ok {
			out = append(out, f)
		}
	}
	return out
}

func repeated(m *dynamic.Message, name string) []interface{} {
	vs, _ := m.GetFieldByName(name).([]interface{})
	return vs
}

// valueFrom converts a shadevm.v1.Value. An absent value reads as 0.
func valueFrom(m *dynamic.Message) host.Value {
	if m == nil {
		return host.Number(0)
	}
	if boolField(m, "is_text") {
		return host.Text(stringField(m, "text"))
	}
	nums := floatsField(m, "numbers")
	if len(nums) == 1 {
		return host.Number(nums[0])
	}
	if len(nums) == 0 {
		return host.Number(0)
	}
	return host.List(nums...)
}

// setValue fills a shadevm.v1.Value from v.
func setValue(m *dynamic.Message, v host.Value) {
	switch {
	case v.IsStr:
		m.SetFieldByName("is_text", true)
		m.SetFieldByName("text", v.Str)
	case len(v.Nums) > 0:
		m.SetFieldByName("numbers", v.Nums)
	default:
		m.SetFieldByName("numbers", []float64{v.Num})
	}
}
