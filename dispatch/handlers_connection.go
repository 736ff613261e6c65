package dispatch

import (
	"context"

	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/status"
	"github.com/nimo-project/registry/value"
)

func connectionToValue(c catalog.Connection) value.Value {
	return value.Map([]value.MapEntry{
		{Key: value.String("fromNode"), Value: value.String(c.FromNode)},
		{Key: value.String("fromPath"), Value: value.String(c.FromPath)},
		{Key: value.String("toNode"), Value: value.String(c.ToNode)},
		{Key: value.String("toPath"), Value: value.String(c.ToPath)},
		{Key: value.String("dataType"), Value: value.String(c.DataType)},
		{Key: value.String("mode"), Value: value.Integer(int64(c.Mode))},
	})
}

// addConnectionHandler implements opcode "addX": fromNode, fromPath,
// toNode, toPath, dataType, mode.
type addConnectionHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newAddConnectionHandler(store *catalog.Store, pub *status.Publisher) *addConnectionHandler {
	return &addConnectionHandler{fixedArity{6}, store, pub}
}

func (h *addConnectionHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	fromNode, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	fromPath, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	toNode, err := argString(args, 2)
	if err != nil {
		return value.Value{}, err
	}
	toPath, err := argString(args, 3)
	if err != nil {
		return value.Value{}, err
	}
	dataType, err := argString(args, 4)
	if err != nil {
		return value.Value{}, err
	}
	mode, err := argInteger(args, 5)
	if err != nil {
		return value.Value{}, err
	}

	conn, err := h.store.AddConnection(fromNode, fromPath, toNode, toPath, dataType, catalog.Mode(mode))
	if err != nil {
		return value.Value{}, err
	}
	h.pub.Publish(status.ConnectionAddedEvent(conn.FromNode, conn.FromPath, conn.ToNode, conn.ToPath, conn.DataType, uint32(conn.Mode)))
	return connectionToValue(conn), nil
}

// removeConnectionHandler implements opcode "rmX": fromNode, fromPath.
type removeConnectionHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newRemoveConnectionHandler(store *catalog.Store, pub *status.Publisher) *removeConnectionHandler {
	return &removeConnectionHandler{fixedArity{2}, store, pub}
}

func (h *removeConnectionHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	fromNode, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	fromPath, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	// RemoveConnection doesn't return the removed record, so fetch the
	// destination endpoint for the event before removing it.
	var toNode, toPath string
	for _, c := range h.store.GetInformationForAllConnections() {
		if c.FromNode == fromNode && c.FromPath == fromPath {
			toNode, toPath = c.ToNode, c.ToPath
			break
		}
	}
	if err := h.store.RemoveConnection(fromNode, fromPath); err != nil {
		return value.Value{}, err
	}
	h.pub.Publish(status.ConnectionRemovedEvent(fromNode, fromPath, toNode, toPath))
	return value.Logical(true), nil
}

// allConnectionInfoHandler implements opcode "infXA": every connection
// in the catalog.
type allConnectionInfoHandler struct {
	fixedArity
	store *catalog.Store
}

func newAllConnectionInfoHandler(store *catalog.Store) *allConnectionInfoHandler {
	return &allConnectionInfoHandler{fixedArity{0}, store}
}

func (h *allConnectionInfoHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	return connectionsToArray(h.store.GetInformationForAllConnections()), nil
}

// connectionsOnNodeHandler implements opcode "infCAA": node. Not part
// of spec.md §6's literal opcode list — assigned here, documented and
// stable, for the "connections on node" query spec.md §4.B names but
// leaves unassigned an opcode.
type connectionsOnNodeHandler struct {
	fixedArity
	store *catalog.Store
}

func newConnectionsOnNodeHandler(store *catalog.Store) *connectionsOnNodeHandler {
	return &connectionsOnNodeHandler{fixedArity{1}, store}
}

func (h *connectionsOnNodeHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return connectionsToArray(h.store.GetInformationForAllConnectionsOnNode(node)), nil
}

// connectionsOnMachineHandler implements opcode "infCAM": machine. Also
// assigned here for the same reason as connectionsOnNodeHandler.
type connectionsOnMachineHandler struct {
	fixedArity
	store *catalog.Store
}

func newConnectionsOnMachineHandler(store *catalog.Store) *connectionsOnMachineHandler {
	return &connectionsOnMachineHandler{fixedArity{1}, store}
}

func (h *connectionsOnMachineHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	machine, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return connectionsToArray(h.store.GetInformationForAllConnectionsOnMachine(machine)), nil
}

func connectionsToArray(conns []catalog.Connection) value.Value {
	elems := make([]value.Value, len(conns))
	for i, c := range conns {
		elems[i] = connectionToValue(c)
	}
	return value.Array(elems)
}
