package ledger_service

import (
	"github.com/dedis/student_19_escrow/ledger"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/network"
)

// ProtocolName can be used from other packages to refer to this protocol.
const ProtocolName = "LedgerAnnounce"

func init() {
	network.RegisterMessage(Announce{})
	network.RegisterMessage(Ack{})
	_, _ = onet.GlobalProtocolRegister(ProtocolName, NewProtocol)
}

// Announce carries a committed round down the tree.
type Announce struct {
	Receipt ledger.Receipt
}

// StructAnnounce just contains Announce and the data necessary to identify and
// process the message in the onet framework.
type StructAnnounce struct {
	*onet.TreeNode
	Announce
}

// Ack counts the nodes of a subtree that saw the announcement.
type Ack struct {
	Count int
}

// StructAck just contains Ack and the data necessary to identify and
// process the message in the onet framework.
type StructAck struct {
	*onet.TreeNode
	Ack
}
