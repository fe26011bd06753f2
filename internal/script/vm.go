// Package script implements the scripted node on top of gopher-lua.
//
// A script declares its ports through globals and reacts through callbacks:
//
//	name         = "AND Gate"
//	input_list   = {"A", "B"}
//	output_list  = {"Y"}
//	input_types  = {"Bool", "Bool"}
//	output_types = {"Bool"}
//	is_async     = false
//
//	function init(inputs) end
//	function state_update(inputs, index, state, is_changed, is_disconnected)
//	  output.apply({inputs[1] and inputs[2]})
//	end
//	function terminate() end
//
// Indices are 1-based as usual in Lua; index is -1 for the update that
// follows init when auto_state_update_after_init is set. Null values are nil
// and a pulse is the PULSE constant.
package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/gyaneshwarpardhi/circuitflow/internal/transition"
)

const maxPorts = 16

// FieldInfo is what a script declares about itself.
type FieldInfo struct {
	Name        string
	Inputs      []string
	Outputs     []string
	InputTypes  []transition.Type
	OutputTypes []transition.Type
	Async       bool
	AutoUpdate  bool
}

// ErrClosed is returned by calls on a VM that was shut down.
var ErrClosed = errors.New("script: vm closed")

type write struct {
	index int
	value transition.Transition
}

// batch collects the effects of one callback. It is applied on the tick
// goroutine after the callback returned without error.
type batch struct {
	writes []write
	prints []string
}

// vm is one Lua state running one script. Calls are serialized by mu, so an
// async script never runs two callbacks at once.
type vm struct {
	mu     sync.Mutex
	L      *lua.LState
	info   FieldInfo
	pulse  *lua.LUserData
	batch  batch
	closed bool
}

// Compile loads source in a throwaway state and returns its declared fields.
func Compile(source string) (FieldInfo, error) {
	v, err := newVM(source)
	if err != nil {
		return FieldInfo{}, err
	}
	info := v.info
	v.close()
	return info, nil
}

func openLibs(L *lua.LState) {
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
}

func newVM(source string) (*vm, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openLibs(L)
	v := &vm{L: L}
	v.pulse = L.NewUserData()
	L.SetGlobal("PULSE", v.pulse)
	L.SetGlobal("print", L.NewFunction(v.luaPrint))

	if err := L.DoString(source); err != nil {
		L.Close()
		return nil, fmt.Errorf("script: load: %w", err)
	}
	info, err := readFields(L)
	if err != nil {
		L.Close()
		return nil, err
	}
	v.info = info

	out := L.NewTable()
	L.SetField(out, "apply", L.NewFunction(v.luaApply))
	L.SetField(out, "apply_at", L.NewFunction(v.luaApplyAt))
	L.SetField(out, "apply_to", L.NewFunction(v.luaApplyTo))
	L.SetGlobal("output", out)
	return v, nil
}

func readFields(L *lua.LState) (FieldInfo, error) {
	var errs []string
	list := func(global string) []string {
		tbl, ok := L.GetGlobal(global).(*lua.LTable)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s must be a table", global))
			return nil
		}
		out := make([]string, 0, tbl.Len())
		for i := 1; i <= tbl.Len(); i++ {
			out = append(out, lua.LVAsString(tbl.RawGetInt(i)))
		}
		return out
	}
	types := func(global string, names []string) []transition.Type {
		raw := list(global)
		if len(raw) != len(names) {
			errs = append(errs, fmt.Sprintf("%s has %d entries, want %d", global, len(raw), len(names)))
			return nil
		}
		out := make([]transition.Type, len(raw))
		for i, s := range raw {
			t, err := transition.ParseType(s)
			if err != nil || t == transition.None {
				errs = append(errs, fmt.Sprintf("%s[%d]: unknown type %q", global, i+1, s))
				continue
			}
			out[i] = t
		}
		return out
	}

	info := FieldInfo{
		Name:       lua.LVAsString(L.GetGlobal("name")),
		Inputs:     list("input_list"),
		Outputs:    list("output_list"),
		Async:      lua.LVAsBool(L.GetGlobal("is_async")),
		AutoUpdate: lua.LVAsBool(L.GetGlobal("auto_state_update_after_init")),
	}
	info.InputTypes = types("input_types", info.Inputs)
	info.OutputTypes = types("output_types", info.Outputs)
	if len(info.Inputs) > maxPorts || len(info.Outputs) > maxPorts {
		errs = append(errs, fmt.Sprintf("at most %d ports per side", maxPorts))
	}
	if L.GetGlobal("state_update").Type() != lua.LTFunction {
		errs = append(errs, "state_update must be a function")
	}
	if len(errs) > 0 {
		return FieldInfo{}, fmt.Errorf("script: invalid fields:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return info, nil
}

// call runs the global function fn if the script defines it and returns the
// effects it produced. args builds the call arguments under the VM lock. ctx
// bounds the call's run time.
func (v *vm) call(ctx context.Context, fn string, args func() []lua.LValue) (batch, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return batch{}, ErrClosed
	}
	f := v.L.GetGlobal(fn)
	if f.Type() != lua.LTFunction {
		return batch{}, nil
	}
	var in []lua.LValue
	if args != nil {
		in = args()
	}
	v.batch = batch{}
	v.L.SetContext(ctx)
	err := v.L.CallByParam(lua.P{Fn: f, NRet: 0, Protect: true}, in...)
	v.L.RemoveContext()
	b := v.batch
	v.batch = batch{}
	if err != nil {
		return batch{}, fmt.Errorf("script: %s: %w", fn, err)
	}
	return b, nil
}

// inputs builds the Lua inputs table. Null entries are left as nil.
func (v *vm) inputs(states []transition.Transition) *lua.LTable {
	tbl := v.L.NewTable()
	for i, s := range states {
		tbl.RawSetInt(i+1, v.toLua(s))
	}
	return tbl
}

func (v *vm) toLua(t transition.Transition) lua.LValue {
	if t.IsNull() || t.IsNone() {
		return lua.LNil
	}
	switch t.Type() {
	case transition.Bool:
		b, _ := t.AsBool()
		return lua.LBool(b)
	case transition.Int:
		i, _ := t.AsInt()
		return lua.LNumber(i)
	case transition.Float:
		f, _ := t.AsFloat()
		return lua.LNumber(f)
	case transition.String:
		s, _ := t.AsString()
		return lua.LString(s)
	case transition.Pulse:
		return v.pulse
	}
	return lua.LNil
}

// fromLua converts a Lua value for a port of type t. nil becomes null.
func (v *vm) fromLua(lv lua.LValue, t transition.Type) (transition.Transition, error) {
	if lv == lua.LNil {
		return transition.Null(t)
	}
	if t == transition.Pulse {
		if lv == lua.LFalse {
			return transition.Null(t)
		}
		return transition.OfPulse(), nil
	}
	var host transition.Transition
	switch x := lv.(type) {
	case lua.LBool:
		host = transition.OfBool(bool(x))
	case lua.LNumber:
		f := float64(x)
		switch {
		case t == transition.Bool:
			return transition.OfBool(f != 0), nil
		case t != transition.Float && f == math.Trunc(f):
			host = transition.OfInt(int(f))
		default:
			host = transition.OfFloat(f)
		}
	case lua.LString:
		host = transition.OfString(string(x))
	default:
		if lv == v.pulse {
			return transition.Transition{}, fmt.Errorf("pulse written to %s port", t)
		}
		return transition.Transition{}, fmt.Errorf("unsupported value %s", lv.Type())
	}
	return transition.Convert(host, t)
}

func (v *vm) push(L *lua.LState, index int, lv lua.LValue) {
	if index < 0 || index >= len(v.info.OutputTypes) {
		L.RaiseError("output index %d out of range", index+1)
		return
	}
	t, err := v.fromLua(lv, v.info.OutputTypes[index])
	if err != nil {
		L.RaiseError("output %s: %v", v.info.Outputs[index], err)
		return
	}
	v.batch.writes = append(v.batch.writes, write{index: index, value: t})
}

func (v *vm) luaApply(L *lua.LState) int {
	tbl := L.CheckTable(1)
	for i := range v.info.OutputTypes {
		v.push(L, i, tbl.RawGetInt(i+1))
	}
	return 0
}

func (v *vm) luaApplyAt(L *lua.LState) int {
	v.push(L, L.CheckInt(1)-1, L.Get(2))
	return 0
}

func (v *vm) luaApplyTo(L *lua.LState) int {
	name := L.CheckString(1)
	for i, n := range v.info.Outputs {
		if n == name {
			v.push(L, i, L.Get(2))
			return 0
		}
	}
	L.RaiseError("no output named %q", name)
	return 0
}

func (v *vm) luaPrint(L *lua.LState) int {
	parts := make([]string, L.GetTop())
	for i := range parts {
		parts[i] = L.ToStringMeta(L.Get(i + 1)).String()
	}
	v.batch.prints = append(v.batch.prints, strings.Join(parts, "\t"))
	return 0
}

func (v *vm) close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.L.Close()
}
