package dispatch

import (
	"context"

	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/status"
	"github.com/nimo-project/registry/value"
)

// addNodeHandler implements opcode "addN": name, machine, execPath,
// cwd, cmdLine, serviceType, address, port.
type addNodeHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newAddNodeHandler(store *catalog.Store, pub *status.Publisher) *addNodeHandler {
	return &addNodeHandler{fixedArity{8}, store, pub}
}

func (h *addNodeHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	machine, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	execPath, err := argString(args, 2)
	if err != nil {
		return value.Value{}, err
	}
	cwd, err := argString(args, 3)
	if err != nil {
		return value.Value{}, err
	}
	cmdLine, err := argString(args, 4)
	if err != nil {
		return value.Value{}, err
	}
	serviceType, err := argString(args, 5)
	if err != nil {
		return value.Value{}, err
	}
	address, err := argString(args, 6)
	if err != nil {
		return value.Value{}, err
	}
	port, err := argInteger(args, 7)
	if err != nil {
		return value.Value{}, err
	}

	launch := catalog.LaunchDetails{ExecPath: execPath, WorkingDir: cwd, CommandLine: cmdLine}
	endpoint := catalog.Endpoint{Address: address, Port: int(port)}
	st := catalog.ServiceType(serviceType)

	if err := h.store.AddNode(name, machine, launch, st, endpoint); err != nil {
		return value.Value{}, err
	}
	h.pub.Publish(status.NodeAddedEvent(name, machine, serviceType, address, int(port)))
	return value.Logical(true), nil
}

// removeNodeHandler implements opcode "rmN": name. Per spec.md §4.B the
// cascade (connections, then channels, then the node) is reflected in
// the order status events are published here.
type removeNodeHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newRemoveNodeHandler(store *catalog.Store, pub *status.Publisher) *removeNodeHandler {
	return &removeNodeHandler{fixedArity{1}, store, pub}
}

func (h *removeNodeHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	report, err := h.store.RemoveNode(name)
	if err != nil {
		return value.Value{}, err
	}
	for _, c := range report.RemovedConnections {
		h.pub.Publish(status.ConnectionRemovedEvent(c.FromNode, c.FromPath, c.ToNode, c.ToPath))
	}
	for _, c := range report.RemovedChannels {
		h.pub.Publish(status.ChannelRemovedEvent(c.NodeName, c.Path))
	}
	h.pub.Publish(status.NodeRemovedEvent(report.RemovedNode))
	return value.Logical(true), nil
}

// countNodesHandler implements opcode "cntN": optional machine filter.
type countNodesHandler struct {
	store *catalog.Store
}

func newCountNodesHandler(store *catalog.Store) *countNodesHandler { return &countNodesHandler{store} }

func (h *countNodesHandler) MinArgs() int { return 0 }
func (h *countNodesHandler) MaxArgs() int { return 1 }

func (h *countNodesHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	machine, has, err := argOptionalString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	if has {
		return value.Integer(int64(h.store.CountNodesOn(machine))), nil
	}
	return value.Integer(int64(h.store.CountNodes())), nil
}

// listNodesHandler implements opcode "lstN": optional machine filter.
type listNodesHandler struct {
	store *catalog.Store
}

func newListNodesHandler(store *catalog.Store) *listNodesHandler { return &listNodesHandler{store} }

func (h *listNodesHandler) MinArgs() int { return 0 }
func (h *listNodesHandler) MaxArgs() int { return 1 }

func (h *listNodesHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	machine, has, err := argOptionalString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	var names []string
	if has {
		names = h.store.NodeNamesOn(machine)
	} else {
		all := h.store.AllNodeInfo()
		names = make([]string, len(all))
		for i, n := range all {
			names[i] = n.Name
		}
	}
	elems := make([]value.Value, len(names))
	for i, n := range names {
		elems[i] = value.String(n)
	}
	return value.Set(elems), nil
}

// isNodePresentHandler implements opcode "isN?": name.
type isNodePresentHandler struct {
	fixedArity
	store *catalog.Store
}

func newIsNodePresentHandler(store *catalog.Store) *isNodePresentHandler {
	return &isNodePresentHandler{fixedArity{1}, store}
}

func (h *isNodePresentHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	return value.Logical(h.store.IsNodePresent(name)), nil
}

// nodeInfoToValue renders a catalog.NodeInfo as a map value.
func nodeInfoToValue(n catalog.NodeInfo) value.Value {
	return value.Map([]value.MapEntry{
		{Key: value.String("name"), Value: value.String(n.Name)},
		{Key: value.String("machine"), Value: value.String(n.MachineName)},
		{Key: value.String("serviceType"), Value: value.String(string(n.ServiceType))},
		{Key: value.String("address"), Value: value.String(n.Endpoint.Address)},
		{Key: value.String("port"), Value: value.Integer(int64(n.Endpoint.Port))},
		{Key: value.String("execPath"), Value: value.String(n.Launch.ExecPath)},
		{Key: value.String("workingDir"), Value: value.String(n.Launch.WorkingDir)},
		{Key: value.String("commandLine"), Value: value.String(n.Launch.CommandLine)},
		{Key: value.String("application"), Value: value.String(n.Application)},
	})
}

// nodeInfoHandler implements opcode "infN": name.
type nodeInfoHandler struct {
	fixedArity
	store *catalog.Store
}

func newNodeInfoHandler(store *catalog.Store) *nodeInfoHandler {
	return &nodeInfoHandler{fixedArity{1}, store}
}

func (h *nodeInfoHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	name, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	info, err := h.store.NodeInfo(name)
	if err != nil {
		return value.Value{}, err
	}
	return nodeInfoToValue(info), nil
}

// allNodeInfoHandler implements opcode "infNA": optional machine filter.
type allNodeInfoHandler struct {
	store *catalog.Store
}

func newAllNodeInfoHandler(store *catalog.Store) *allNodeInfoHandler {
	return &allNodeInfoHandler{store}
}

func (h *allNodeInfoHandler) MinArgs() int { return 0 }
func (h *allNodeInfoHandler) MaxArgs() int { return 1 }

func (h *allNodeInfoHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	machine, has, err := argOptionalString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	var infos []catalog.NodeInfo
	if has {
		infos = h.store.AllNodeInfoOn(machine)
	} else {
		infos = h.store.AllNodeInfo()
	}
	elems := make([]value.Value, len(infos))
	for i, n := range infos {
		elems[i] = nodeInfoToValue(n)
	}
	return value.Array(elems), nil
}

// setApplicationHandler implements opcode "setA": node, application.
type setApplicationHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newSetApplicationHandler(store *catalog.Store, pub *status.Publisher) *setApplicationHandler {
	return &setApplicationHandler{fixedArity{2}, store, pub}
}

func (h *setApplicationHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	app, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	if err := h.store.SetApplicationForNode(node, app); err != nil {
		return value.Value{}, err
	}
	h.pub.Publish(status.ApplicationSetEvent(node, app))
	return value.Logical(true), nil
}

// getApplicationHandler implements opcode "getA": node.
type getApplicationHandler struct {
	fixedArity
	store *catalog.Store
}

func newGetApplicationHandler(store *catalog.Store) *getApplicationHandler {
	return &getApplicationHandler{fixedArity{1}, store}
}

func (h *getApplicationHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	app, err := h.store.GetApplicationForNode(node)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(app), nil
}
