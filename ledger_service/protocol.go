package ledger_service

import (
	"github.com/dedis/student_19_escrow/ledger"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// AnnounceProtocol tells every node of the tree about a committed round and
// counts the acknowledgements on the way up.
//
// Only the root-node writes the total to Acks.
type AnnounceProtocol struct {
	*onet.TreeNodeInstance
	Receipt ledger.Receipt
	Acks    chan int
}

// Check that *AnnounceProtocol implements onet.ProtocolInstance
var _ onet.ProtocolInstance = (*AnnounceProtocol)(nil)

// NewProtocol initialises the structure for use in one round
func NewProtocol(n *onet.TreeNodeInstance) (onet.ProtocolInstance, error) {
	t := &AnnounceProtocol{
		TreeNodeInstance: n,
		Acks:             make(chan int, 1),
	}
	for _, handler := range []interface{}{t.HandleAnnounce, t.HandleAck} {
		if err := t.RegisterHandler(handler); err != nil {
			return nil, xerrors.Errorf("couldn't register handler: %w", err)
		}
	}
	return t, nil
}

// Start sends the receipt to all children
func (p *AnnounceProtocol) Start() error {
	log.Lvl3("Starting AnnounceProtocol for round", p.Receipt.Round)
	return p.HandleAnnounce(StructAnnounce{p.TreeNode(), Announce{p.Receipt}})
}

// HandleAnnounce passes the receipt on, leaves start the replies.
func (p *AnnounceProtocol) HandleAnnounce(msg StructAnnounce) error {
	p.Receipt = msg.Receipt
	log.Lvlf3("%s: round %d committed at %d", p.ServerIdentity(),
		msg.Receipt.Round, msg.Receipt.Time)
	if !p.IsLeaf() {
		return p.SendToChildren(&msg.Announce)
	}
	return p.HandleAck(nil)
}

// HandleAck sums the acks of the children and sends them up.
func (p *AnnounceProtocol) HandleAck(replies []StructAck) error {
	defer p.Done()

	count := 1
	for _, r := range replies {
		count += r.Count
	}

	if !p.IsRoot() {
		return p.SendTo(p.Parent(), &Ack{count})
	}
	log.Lvl3("Round", p.Receipt.Round, "acknowledged by", count, "nodes")
	p.Acks <- count
	return nil
}
