package ledger_service

import (
	"sync"
	"time"

	"github.com/dedis/student_19_escrow/auctions"
	"github.com/dedis/student_19_escrow/ledger"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"golang.org/x/xerrors"
)

// Used for tests
var ledgerServiceID onet.ServiceID

// announceTimeout bounds the wait for the acks of a commit announcement.
var announceTimeout = 10 * time.Second

func init() {
	var err error
	ledgerServiceID, err = onet.RegisterNewService(ServiceName, newService)
	log.ErrFatal(err)
}

// Service hosts a ledger with the auction contract registered.
type Service struct {
	*onet.ServiceProcessor
	sync.Mutex
	ledger *ledger.Ledger
}

// SubmitGroup applies the group and announces the new round to the roster.
func (s *Service) SubmitGroup(req *SubmitGroup) (*SubmitGroupReply, error) {
	rcpt, err := s.getLedger().Submit(req.Group)
	if err != nil {
		return nil, err
	}
	reply := &SubmitGroupReply{Receipt: rcpt, Acks: 1}
	if req.Roster == nil || len(req.Roster.List) < 2 {
		return reply, nil
	}
	reply.Acks, err = s.announce(req.Roster, rcpt)
	if err != nil {
		// The group is committed whatever the followers do.
		log.Error(s.ServerIdentity(), "announcing round", rcpt.Round, ":", err)
	}
	return reply, nil
}

func (s *Service) announce(roster *onet.Roster, rcpt ledger.Receipt) (int, error) {
	tree := roster.GenerateNaryTreeWithRoot(2, s.ServerIdentity())
	if tree == nil {
		return 1, xerrors.New("not part of the roster")
	}
	pi, err := s.CreateProtocol(ProtocolName, tree)
	if err != nil {
		return 1, err
	}
	p := pi.(*AnnounceProtocol)
	p.Receipt = rcpt
	if err := p.Start(); err != nil {
		return 1, err
	}
	select {
	case acks := <-p.Acks:
		return acks, nil
	case <-time.After(announceTimeout):
		return 1, xerrors.New("timeout waiting for acks")
	}
}

// GetTime returns the ledger time.
func (s *Service) GetTime(req *GetTime) (*GetTimeReply, error) {
	now, err := s.getLedger().Now()
	if err != nil {
		return nil, err
	}
	return &GetTimeReply{Now: now}, nil
}

// GetGlobalState returns the state of an application.
func (s *Service) GetGlobalState(req *GetGlobalState) (*GetGlobalStateReply, error) {
	gs, err := s.getLedger().GlobalState(req.AppID)
	if err != nil {
		return nil, err
	}
	return &GetGlobalStateReply{State: gs}, nil
}

// GetBalances returns what an address holds.
func (s *Service) GetBalances(req *GetBalances) (*GetBalancesReply, error) {
	bals, err := s.getLedger().Balances(req.Address)
	if err != nil {
		return nil, err
	}
	return &GetBalancesReply{Balances: bals}, nil
}

// GetParams returns the consensus parameters.
func (s *Service) GetParams(req *GetParams) (*GetParamsReply, error) {
	p, err := s.getLedger().Params()
	if err != nil {
		return nil, err
	}
	return &GetParamsReply{Params: p}, nil
}

func (s *Service) getLedger() *ledger.Ledger {
	s.Lock()
	defer s.Unlock()
	return s.ledger
}

// Reset replaces the ledger by an empty one. A nil clock follows the wall
// clock.
func (s *Service) Reset(params ledger.Params, clock ledger.Clock) error {
	l, err := ledger.New(params, clock)
	if err != nil {
		return err
	}
	if err := auctions.Register(l); err != nil {
		return err
	}
	s.Lock()
	s.ledger = l
	s.Unlock()
	return nil
}

// Fund credits addr on the hosted ledger. Only callers in the same process,
// like simulations, can reach it.
func (s *Service) Fund(addr ledger.Address, amount uint64) error {
	return s.getLedger().Fund(addr, amount)
}

// newService receives the context that holds information about the node it's
// running on. The ledger only lives in memory.
func newService(c *onet.Context) (onet.Service, error) {
	s := &Service{
		ServiceProcessor: onet.NewServiceProcessor(c),
	}
	if err := s.Reset(ledger.DefaultParams(), nil); err != nil {
		return nil, err
	}
	if err := s.RegisterHandlers(s.SubmitGroup, s.GetTime, s.GetGlobalState,
		s.GetBalances, s.GetParams); err != nil {
		return nil, err
	}
	return s, nil
}
