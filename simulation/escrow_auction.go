package main

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dedis/student_19_escrow/auctions"
	"github.com/dedis/student_19_escrow/ledger"
	"github.com/dedis/student_19_escrow/ledger_service"
	"go.dedis.ch/onet/v3"
	"go.dedis.ch/onet/v3/log"
	"go.dedis.ch/onet/v3/simul/monitor"
	"golang.org/x/xerrors"
)

func init() {
	onet.SimulationRegister("EscrowAuction", NewSimulationEscrowAuction)
}

// SimulationEscrowAuction runs one auction per round on the ledger hosted by
// the root node. Every bidder bids Bids times, each bid raising the previous
// one by the minimum increment.
type SimulationEscrowAuction struct {
	onet.SimulationBFTree
	// Window is how long bidding stays open, in whole seconds.
	Window  string
	Bidders int
	Bids    int

	params ledger.Params
}

// NewSimulationEscrowAuction returns the new simulation, where all fields are
// initialised using the config-file. Ledger parameters may be given in the
// same file.
func NewSimulationEscrowAuction(config string) (onet.Simulation, error) {
	es := &SimulationEscrowAuction{}
	_, err := toml.Decode(config, es)
	if err != nil {
		return nil, err
	}
	es.params, err = ledger.DecodeParams(config)
	if err != nil {
		return nil, err
	}
	return es, nil
}

// Setup creates the tree used for that simulation
func (s *SimulationEscrowAuction) Setup(dir string, hosts []string) (
	*onet.SimulationConfig, error) {
	sc := &onet.SimulationConfig{}
	s.CreateRoster(sc, hosts, 2000)
	err := s.CreateTree(sc)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Node can be used to initialize each node before it will be run
// by the server. Here we call the 'Node'-method of the
// SimulationBFTree structure which will load the roster- and the
// tree-structure to speed up the first round.
func (s *SimulationEscrowAuction) Node(config *onet.SimulationConfig) error {
	index, _ := config.Roster.Search(config.Server.ServerIdentity.ID)
	if index < 0 {
		log.Fatal("Didn't find this node in roster")
	}
	log.Lvl3("Initializing node-index", index)
	return s.SimulationBFTree.Node(config)
}

const (
	bidderFunds  = 1000000000
	firstBid     = 1000000
	minIncrement = 100000
)

// Run is used on the root node and runs a number of rounds
func (s *SimulationEscrowAuction) Run(config *onet.SimulationConfig) error {
	size := config.Tree.Size()
	log.Lvl2("Size is:", size, "rounds:", s.Rounds)

	window, err := time.ParseDuration(s.Window)
	if err != nil {
		return xerrors.Errorf("parse duration of Window failed: %w", err)
	}
	if window < time.Second {
		return xerrors.New("Window must be at least one second")
	}

	svc, ok := config.GetService(ledger_service.ServiceName).(*ledger_service.Service)
	if !ok {
		return xerrors.New("ledger service not running")
	}
	if err := svc.Reset(s.params, nil); err != nil {
		return err
	}
	cl := ledger_service.NewClient(config.Roster)
	ac := auctions.NewClient(cl)

	for round := 0; round < s.Rounds; round++ {
		log.Lvl1("Starting round", round)
		roundM := monitor.NewTimeMeasure("round")

		setup := monitor.NewTimeMeasure("setup")
		seller, err := s.newAccount(svc)
		if err != nil {
			return err
		}
		rcpt, err := cl.Submit(ledger.NewGroup(ledger.NewAssetCreate(seller, 1)))
		if err != nil {
			return xerrors.Errorf("couldn't create asset: %w", err)
		}
		assetID := rcpt.AssetID

		bidders := make([]ledger.Address, s.Bidders)
		for i := range bidders {
			if bidders[i], err = s.newAccount(svc); err != nil {
				return err
			}
			_, err = cl.Submit(ledger.NewGroup(ledger.NewAssetOptIn(bidders[i], assetID)))
			if err != nil {
				return xerrors.Errorf("couldn't opt in: %w", err)
			}
		}

		now, err := cl.Now()
		if err != nil {
			return err
		}
		args := auctions.CreateArgs{
			Seller:          seller,
			AssetID:         assetID,
			Start:           now + 2,
			End:             now + 2 + uint64(window/time.Second),
			MinBidIncrement: minIncrement,
		}
		appID, err := ac.Create(seller, args)
		if err != nil {
			return err
		}
		if _, err = ac.Setup(appID, seller); err != nil {
			return err
		}
		setup.Record()
		sleepUntil(args.Start)

		bids := monitor.NewTimeMeasure("bids")
		amount := uint64(firstBid)
		var winner ledger.Address
		for loop1 := 0; loop1 < s.Bids; loop1++ {
			for loop2 := 0; loop2 < s.Bidders; loop2++ {
				if _, err = ac.Bid(appID, bidders[loop2], amount); err != nil {
					return xerrors.Errorf("couldn't bid: %w", err)
				}
				winner = bidders[loop2]
				amount += minIncrement
			}
		}
		bids.Record()
		sleepUntil(args.End)

		confirm := monitor.NewTimeMeasure("close")
		if _, err = ac.Close(appID, seller); err != nil {
			return xerrors.Errorf("couldn't close auction: %w", err)
		}
		if len(bidders) > 0 && s.Bids > 0 {
			bals, err := cl.Balances(winner)
			if err != nil {
				return err
			}
			if bals[assetID] != 1 {
				return xerrors.New("winner didn't get the lot")
			}
		}
		confirm.Record()

		roundM.Record()
	}
	return nil
}

func (s *SimulationEscrowAuction) newAccount(svc *ledger_service.Service) (ledger.Address, error) {
	acc, err := ledger.NewAccount()
	if err != nil {
		return ledger.ZeroAddress, err
	}
	return acc.Address, svc.Fund(acc.Address, bidderFunds)
}

// sleepUntil waits for the ledger clock, in unix seconds, to reach t.
func sleepUntil(t uint64) {
	time.Sleep(time.Until(time.Unix(int64(t), 0)))
}
