package dispatch

import (
	"context"

	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/status"
	"github.com/nimo-project/registry/value"
)

// addMachineHandler implements opcode "addM": name, ipv4.
type addMachineHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newAddMachineHandler(store *catalog.Store, pub *status.Publisher) *addMachineHandler {
	return &addMachineHandler{fixedArity{2}, store, pub}
}

func (h *addMachineHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	ipv4, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	if err := h.store.AddMachine(name, ipv4); err != nil {
		return value.Value{}, err
	}
	h.pub.Publish(status.MachineAddedEvent(name, ipv4))
	return value.Logical(true), nil
}

// removeMachineHandler implements opcode "rmM": name.
type removeMachineHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newRemoveMachineHandler(store *catalog.Store, pub *status.Publisher) *removeMachineHandler {
	return &removeMachineHandler{fixedArity{1}, store, pub}
}

func (h *removeMachineHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	if err := h.store.RemoveMachine(name); err != nil {
		return value.Value{}, err
	}
	h.pub.Publish(status.MachineRemovedEvent(name))
	return value.Logical(true), nil
}

// countMachinesHandler implements opcode "cntM": no arguments.
type countMachinesHandler struct {
	fixedArity
	store *catalog.Store
}

func newCountMachinesHandler(store *catalog.Store) *countMachinesHandler {
	return &countMachinesHandler{fixedArity{0}, store}
}

func (h *countMachinesHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	return value.Integer(int64(h.store.CountMachines())), nil
}

// listMachinesHandler implements opcode "lstM": no arguments.
type listMachinesHandler struct {
	fixedArity
	store *catalog.Store
}

func newListMachinesHandler(store *catalog.Store) *listMachinesHandler {
	return &listMachinesHandler{fixedArity{0}, store}
}

func (h *listMachinesHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	names := h.store.MachineNames()
	elems := make([]value.Value, len(names))
	for i, n := range names {
		elems[i] = value.String(n)
	}
	return value.Set(elems), nil
}

// isMachinePresentHandler implements opcode "isM?": name.
type isMachinePresentHandler struct {
	fixedArity
	store *catalog.Store
}

func newIsMachinePresentHandler(store *catalog.Store) *isMachinePresentHandler {
	return &isMachinePresentHandler{fixedArity{1}, store}
}

func (h *isMachinePresentHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.Logical(h.store.IsMachinePresent(name)), nil
}
