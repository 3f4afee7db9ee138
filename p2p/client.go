package p2p

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// ParsePeers parses the --peers flag value "id=url,id2=url2" into the static
// peer map.
func ParsePeers(csv string) (map[string]string, error) {
	peers := map[string]string{}
	if strings.TrimSpace(csv) == "" {
		return peers, nil
	}
	for _, entry := range strings.Split(csv, ",") {
		entry = strings.TrimSpace(entry)
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("invalid peer entry %q, want id=url", entry)
		}
		peers[parts[0]] = strings.TrimSuffix(parts[1], "/")
	}
	return peers, nil
}

// postEnvelope delivers one envelope to a peer's message endpoint and decodes
// the reply.
func (s *Service) postEnvelope(baseURL string, env *Envelope) (*Reply, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, baseURL+"/p2p/message", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Could not close peer response body")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("peer returned status %d", resp.StatusCode)
	}
	reply := &Reply{}
	if err := json.NewDecoder(resp.Body).Decode(reply); err != nil {
		return nil, errors.Wrap(err, "could not decode peer reply")
	}
	return reply, nil
}
