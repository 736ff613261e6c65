package dispatch

import (
	"github.com/nimo-project/registry/catalog"
	"github.com/nimo-project/registry/status"
)

// RegisterAll binds every opcode of spec.md §6 (plus the
// connections-by-node/machine opcodes assigned in its absence) to a
// handler backed by store and pub. Call once at Registry-service
// startup, before the listener starts accepting sessions.
func RegisterAll(r *Registry, store *catalog.Store, pub *status.Publisher) {
	r.Register("addM", newAddMachineHandler(store, pub))
	r.Register("rmM", newRemoveMachineHandler(store, pub))
	r.Register("cntM", newCountMachinesHandler(store))
	r.Register("lstM", newListMachinesHandler(store))
	r.Register("isM?", newIsMachinePresentHandler(store))

	r.Register("addN", newAddNodeHandler(store, pub))
	r.Register("rmN", newRemoveNodeHandler(store, pub))
	r.Register("cntN", newCountNodesHandler(store))
	r.Register("lstN", newListNodesHandler(store))
	r.Register("isN?", newIsNodePresentHandler(store))
	r.Register("infN", newNodeInfoHandler(store))
	r.Register("infNA", newAllNodeInfoHandler(store))
	r.Register("setA", newSetApplicationHandler(store, pub))
	r.Register("getA", newGetApplicationHandler(store))

	r.Register("addC", newAddChannelHandler(store, pub))
	r.Register("rmC", newRemoveChannelHandler(store, pub))
	r.Register("rmCFN", newRemoveChannelsForNodeHandler(store, pub))
	r.Register("infC", newChannelInfoHandler(store))
	r.Register("infCA", newAllChannelInfoHandler(store))

	r.Register("addX", newAddConnectionHandler(store, pub))
	r.Register("rmX", newRemoveConnectionHandler(store, pub))
	r.Register("infXA", newAllConnectionInfoHandler(store))
	r.Register("infCAA", newConnectionsOnNodeHandler(store))
	r.Register("infCAM", newConnectionsOnMachineHandler(store))
}
