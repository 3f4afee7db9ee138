// Package p2p replicates attestations and enrollments across a static peer
// set. Peers gossip inv/getdata/data envelopes over HTTP; rows merge under
// CRDT rules so nodes converge regardless of delivery order. Peer identity is
// trust-on-first-use: the first public key seen for a node id is pinned until
// an admin revokes it.
package p2p

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/rustchain-network/rustchain/async"
	"github.com/rustchain-network/rustchain/config/params"
	"github.com/rustchain-network/rustchain/crypto/rtc"
	"github.com/rustchain-network/rustchain/db/iface"
)

// ErrUntrustedPeer is returned when an envelope's key conflicts with the
// pinned first-seen key for its node id. Handlers map it to 401.
var ErrUntrustedPeer = errors.New("peer key does not match pinned key")

// Config options for the p2p service.
type Config struct {
	DB     iface.Database
	NodeID string
	Peers  map[string]string // node id -> base URL
	// PrivateKey is the node identity key. Generated fresh when nil.
	PrivateKey ed25519.PrivateKey
}

// Service runs the gossip loop and answers peer envelopes.
type Service struct {
	cfg    *Config
	ctx    context.Context
	cancel context.CancelFunc
	pub    ed25519.PublicKey
	priv   ed25519.PrivateKey
	cache  *gossipCache
	client *http.Client

	mu         sync.Mutex
	lastGossip int64
}

// New constructs the p2p service.
func New(ctx context.Context, cfg *Config) (*Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("p2p service requires a database")
	}
	priv := cfg.PrivateKey
	var pub ed25519.PublicKey
	if priv == nil {
		var err error
		pub, priv, err = rtc.GenerateKey()
		if err != nil {
			return nil, err
		}
	} else {
		pub = priv.Public().(ed25519.PublicKey)
	}
	expiry := params.RustchainConfig().MessageExpiry
	cache, err := newGossipCache(expiry)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Service{
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		pub:        pub,
		priv:       priv,
		cache:      cache,
		client:     &http.Client{Timeout: 15 * time.Second},
		lastGossip: time.Now().Add(-expiry).Unix(),
	}, nil
}

// NodeKey returns the node's public identity key.
func (s *Service) NodeKey() ed25519.PublicKey {
	return s.pub
}

// Start launches the gossip loop.
func (s *Service) Start() {
	log.WithFields(logrus.Fields{
		"nodeID": s.cfg.NodeID,
		"pubkey": hex.EncodeToString(s.pub),
		"peers":  len(s.cfg.Peers),
	}).Info("Starting gossip")
	async.RunEvery(s.ctx, params.RustchainConfig().GossipInterval, s.gossipOnce)
}

// Stop halts the gossip loop.
func (s *Service) Stop() error {
	s.cancel()
	return nil
}

// Status always returns nil; peer failures are best-effort by design.
func (s *Service) Status() error {
	return nil
}

// Reply is the response body to a peer envelope.
type Reply struct {
	OK        bool        `json:"ok"`
	Want      []string    `json:"want,omitempty"`
	Envelopes []*Envelope `json:"envelopes,omitempty"`
}

// invPayload is the body of inv and getdata envelopes.
type invPayload struct {
	Hashes []string `json:"hashes"`
}

// HandleMessage verifies one incoming envelope and dispatches on its kind.
// Peer identity pins on first use; any later key for the same node id is
// rejected with ErrUntrustedPeer.
func (s *Service) HandleMessage(ctx context.Context, env *Envelope) (*Reply, error) {
	pub, err := hex.DecodeString(env.Pubkey)
	if err != nil || !rtc.ValidPublicKey(pub) {
		return nil, errors.New("envelope pubkey must be a hex Ed25519 key")
	}
	trusted, err := s.cfg.DB.SavePeerKeyIfAbsent(ctx, env.AgentID, pub)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(trusted, pub) {
		return nil, ErrUntrustedPeer
	}
	if err := checkEnvelope(env, trusted, time.Now(), params.RustchainConfig().MessageExpiry); err != nil {
		return nil, err
	}

	switch env.Kind {
	case KindInv:
		return s.handleInv(env)
	case KindGetData:
		return s.handleGetData(env)
	case KindData:
		return s.handleData(ctx, env)
	default:
		return nil, errors.Errorf("unknown envelope kind %q", env.Kind)
	}
}

func (s *Service) handleInv(env *Envelope) (*Reply, error) {
	var inv invPayload
	if err := json.Unmarshal(env.Payload, &inv); err != nil {
		return nil, errors.Wrap(err, "could not decode inv payload")
	}
	var want []string
	for _, h := range inv.Hashes {
		if !s.cache.hasSeen(h) {
			want = append(want, h)
		}
	}
	return &Reply{OK: true, Want: want}, nil
}

func (s *Service) handleGetData(env *Envelope) (*Reply, error) {
	var req invPayload
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		return nil, errors.Wrap(err, "could not decode getdata payload")
	}
	reply := &Reply{OK: true}
	for _, h := range req.Hashes {
		payload, ok := s.cache.payload(h)
		if !ok {
			continue
		}
		out, err := newEnvelope(KindData, s.cfg.NodeID, s.priv, s.pub, payload, params.RustchainConfig().MessageExpiry)
		if err != nil {
			return nil, err
		}
		reply.Envelopes = append(reply.Envelopes, out)
	}
	return reply, nil
}

func (s *Service) handleData(ctx context.Context, env *Envelope) (*Reply, error) {
	if len(env.Payload) == 0 {
		return nil, errors.New("data envelope has no payload")
	}
	// Dedup on payload hash: a replayed row is acknowledged, not re-merged.
	if s.cache.markSeen(env.PayloadHash) {
		return &Reply{OK: true}, nil
	}
	changed, err := mergeData(ctx, s.cfg.DB, env.Payload)
	if err != nil {
		return nil, err
	}
	s.cache.offer(env.PayloadHash, env.Payload)
	if changed {
		log.WithField("hash", env.PayloadHash).Debug("Merged gossiped row")
	}
	return &Reply{OK: true}, nil
}

// gossipOnce composes an inv of rows changed since the last tick and pushes
// it to every peer, following up with data envelopes for whatever each peer
// reports missing. Peer failures are logged and skipped.
func (s *Service) gossipOnce() {
	s.mu.Lock()
	since := s.lastGossip
	s.lastGossip = time.Now().Unix()
	s.mu.Unlock()

	payloads, err := s.collectPayloads(s.ctx, since)
	if err != nil {
		log.WithError(err).Error("Could not collect gossip payloads")
		return
	}
	if len(payloads) == 0 || len(s.cfg.Peers) == 0 {
		return
	}

	hashes := make([]string, 0, len(payloads))
	for h, p := range payloads {
		s.cache.offer(h, p)
		hashes = append(hashes, h)
	}
	body, err := json.Marshal(&invPayload{Hashes: hashes})
	if err != nil {
		log.WithError(err).Error("Could not encode inv payload")
		return
	}

	for peerID, baseURL := range s.cfg.Peers {
		if peerID == s.cfg.NodeID {
			continue
		}
		s.gossipToPeer(peerID, baseURL, body, payloads)
	}
}

func (s *Service) gossipToPeer(peerID, baseURL string, invBody []byte, payloads map[string]json.RawMessage) {
	expiry := params.RustchainConfig().MessageExpiry
	env, err := newEnvelope(KindInv, s.cfg.NodeID, s.priv, s.pub, invBody, expiry)
	if err != nil {
		log.WithError(err).Error("Could not sign inv envelope")
		return
	}
	reply, err := s.postEnvelope(baseURL, env)
	if err != nil {
		log.WithError(err).WithField("peer", peerID).Debug("Peer unreachable")
		return
	}
	for _, h := range reply.Want {
		payload, ok := payloads[h]
		if !ok {
			continue
		}
		data, err := newEnvelope(KindData, s.cfg.NodeID, s.priv, s.pub, payload, expiry)
		if err != nil {
			log.WithError(err).Error("Could not sign data envelope")
			return
		}
		if _, err := s.postEnvelope(baseURL, data); err != nil {
			log.WithError(err).WithField("peer", peerID).Debug("Could not push data to peer")
			return
		}
	}
}

// collectPayloads gathers attestations accepted since the given time plus the
// enrollment sets of all unsettled epochs, keyed by payload hash.
func (s *Service) collectPayloads(ctx context.Context, since int64) (map[string]json.RawMessage, error) {
	out := map[string]json.RawMessage{}
	atts, err := s.cfg.DB.AttestationsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	for _, a := range atts {
		p, err := attestationData(a)
		if err != nil {
			return nil, err
		}
		out[rtc.PayloadHash(p)] = p
	}
	enrollments, err := s.cfg.DB.EnrollmentsForUnsettledEpochs(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range enrollments {
		p, err := enrollmentData(e)
		if err != nil {
			return nil, err
		}
		out[rtc.PayloadHash(p)] = p
	}
	return out, nil
}
