package dispatch

import (
	"context"

	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/status"
	"github.com/nimo-project/registry/value"
)

func channelToValue(c catalog.Channel) value.Value {
	return value.Map([]value.MapEntry{
		{Key: value.String("node"), Value: value.String(c.NodeName)},
		{Key: value.String("path"), Value: value.String(c.Path)},
		{Key: value.String("direction"), Value: value.String(string(c.Direction))},
		{Key: value.String("dataType"), Value: value.String(c.DataType)},
		{Key: value.String("modes"), Value: value.Integer(int64(c.Modes))},
		{Key: value.String("inUse"), Value: value.Logical(c.InUse)},
	})
}

// addChannelHandler implements opcode "addC": node, path, direction,
// dataType, modes.
type addChannelHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newAddChannelHandler(store *catalog.Store, pub *status.Publisher) *addChannelHandler {
	return &addChannelHandler{fixedArity{5}, store, pub}
}

func (h *addChannelHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	path, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	direction, err := argString(args, 2)
	if err != nil {
		return value.Value{}, err
	}
	dataType, err := argString(args, 3)
	if err != nil {
		return value.Value{}, err
	}
	modes, err := argInteger(args, 4)
	if err != nil {
		return value.Value{}, err
	}

	if err := h.store.AddChannel(node, path, catalog.Direction(direction), dataType, catalog.Mode(modes)); err != nil {
		return value.Value{}, err
	}
	h.pub.Publish(status.ChannelAddedEvent(node, path, direction, dataType))
	return value.Logical(true), nil
}

// removeChannelHandler implements opcode "rmC": node, path.
type removeChannelHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newRemoveChannelHandler(store *catalog.Store, pub *status.Publisher) *removeChannelHandler {
	return &removeChannelHandler{fixedArity{2}, store, pub}
}

func (h *removeChannelHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	path, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	removedConns, err := h.store.RemoveChannel(node, path)
	if err != nil {
		return value.Value{}, err
	}
	for _, c := range removedConns {
		h.pub.Publish(status.ConnectionRemovedEvent(c.FromNode, c.FromPath, c.ToNode, c.ToPath))
	}
	h.pub.Publish(status.ChannelRemovedEvent(node, path))
	return value.Logical(true), nil
}

// removeChannelsForNodeHandler implements opcode "rmCFN": node.
type removeChannelsForNodeHandler struct {
	fixedArity
	store *catalog.Store
	pub   *status.Publisher
}

func newRemoveChannelsForNodeHandler(store *catalog.Store, pub *status.Publisher) *removeChannelsForNodeHandler {
	return &removeChannelsForNodeHandler{fixedArity{1}, store, pub}
}

func (h *removeChannelsForNodeHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	removedChannels, removedConns, err := h.store.RemoveChannelsForNode(node)
	if err != nil {
		return value.Value{}, err
	}
	for _, c := range removedConns {
		h.pub.Publish(status.ConnectionRemovedEvent(c.FromNode, c.FromPath, c.ToNode, c.ToPath))
	}
	for _, c := range removedChannels {
		h.pub.Publish(status.ChannelRemovedEvent(c.NodeName, c.Path))
	}
	return value.Integer(int64(len(removedChannels))), nil
}

// channelInfoHandler implements opcode "infC": node, path.
type channelInfoHandler struct {
	fixedArity
	store *catalog.Store
}

func newChannelInfoHandler(store *catalog.Store) *channelInfoHandler {
	return &channelInfoHandler{fixedArity{2}, store}
}

func (h *channelInfoHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, err := argString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	path, err := argString(args, 1)
	if err != nil {
		return value.Value{}, err
	}
	ch, err := h.store.GetInformationForChannel(node, path)
	if err != nil {
		return value.Value{}, err
	}
	return channelToValue(ch), nil
}

// allChannelInfoHandler implements opcode "infCA": optional node
// filter (channels on one node when given, every channel otherwise).
type allChannelInfoHandler struct {
	store *catalog.Store
}

func newAllChannelInfoHandler(store *catalog.Store) *allChannelInfoHandler {
	return &allChannelInfoHandler{store}
}

func (h *allChannelInfoHandler) MinArgs() int { return 0 }
func (h *allChannelInfoHandler) MaxArgs() int { return 1 }

func (h *allChannelInfoHandler) Execute(ctx context.Context, args []value.Value) (value.Value, error) {
	node, has, err := argOptionalString(args, 0)
	if err != nil {
		return value.Value{}, err
	}
	var channels []catalog.Channel
	if has {
		channels = h.store.GetInformationForAllChannelsOnNode(node)
	} else {
		channels = h.store.AllChannels()
	}
	elems := make([]value.Value, len(channels))
	for i, c := range channels {
		elems[i] = channelToValue(c)
	}
	return value.Array(elems), nil
}
