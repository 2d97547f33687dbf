package detour

// (module, symbol)-keyed variants of the registry's public operations,
// per §6: "each accepts either a target address directly or a
// (module, symbol) pair." Go has no overloading, so the pair form gets
// its own names instead of an interface{} parameter.

// CreateByName resolves symbol in module (module == "" for the running
// executable) and calls Create with the resolved address.
func CreateByName(module, symbol string, detour uintptr) Status {
	addr, st := ResolveSymbol(module, symbol)
	if !st.Ok() {
		return st
	}
	return Create(addr, detour)
}

// RemoveByName resolves symbol in module and calls Remove.
func RemoveByName(module, symbol string) Status {
	addr, st := ResolveSymbol(module, symbol)
	if !st.Ok() {
		return st
	}
	return Remove(addr)
}

// EnableByName resolves symbol in module and calls Enable.
func EnableByName(module, symbol string) Status {
	addr, st := ResolveSymbol(module, symbol)
	if !st.Ok() {
		return st
	}
	return Enable(addr)
}

// DisableByName resolves symbol in module and calls Disable.
func DisableByName(module, symbol string) Status {
	addr, st := ResolveSymbol(module, symbol)
	if !st.Ok() {
		return st
	}
	return Disable(addr)
}

// QueueEnableByName resolves symbol in module and calls QueueEnable.
func QueueEnableByName(module, symbol string) Status {
	addr, st := ResolveSymbol(module, symbol)
	if !st.Ok() {
		return st
	}
	return QueueEnable(addr)
}

// QueueDisableByName resolves symbol in module and calls QueueDisable.
func QueueDisableByName(module, symbol string) Status {
	addr, st := ResolveSymbol(module, symbol)
	if !st.Ok() {
		return st
	}
	return QueueDisable(addr)
}
