// Package lua hosts the guest runtime used by the hook engine.
//
// It wraps gopher-lua with:
//   - State: a Lua VM opened with the libraries scripts are allowed to use
//   - Value: a tagged variant for values crossing the host/guest boundary
//   - Stack: the positional marshaling protocol used during dispatch
//   - ProtoCache: compiled chunks reused across reloads
//
// None of these types are goroutine-safe. gopher-lua's LState must only be
// touched by one goroutine at a time; the engine guarantees this by holding
// its execution lock around every use.
//
// # Stack protocol
//
// A dispatch pushes its fixed arguments once, then for each callback:
//
//	mark := stack.Mark()
//	fnIdx := stack.PushFunction(fn)
//	for i := 0; i < nargs; i++ {
//	    stack.PushCopy(argBase + i)
//	}
//	res, err := stack.CallAt(fnIdx, nargs, 1)
//	if err == nil {
//	    v := stack.Get(res)
//	    // inspect, maybe stack.ReplaceAt(argIdx, v)
//	}
//	stack.PopTo(mark)
package lua
