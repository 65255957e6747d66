package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang/glog"

	"github.com/hb9tf/benchlab/measurement"
)

const (
	contentType              = "application/json"
	CollectEndpoint          = "/benchlab/v1/collect"
	defaultSendRecordsAmount = 100
)

// CollectResponse is what the collection server answers to a POST.
type CollectResponse struct {
	Status      string `json:"status"`
	RecordCount int    `json:"recordCount"`
}

// Server sends records to a benchlab collection server in batches.
type Server struct {
	Server            string
	SendRecordsAmount int
	Client            *http.Client
}

func (s *Server) Write(ctx context.Context, records <-chan measurement.Record) error {
	sendRecordsAmount := defaultSendRecordsAmount
	if s.SendRecordsAmount > 0 {
		sendRecordsAmount = s.SendRecordsAmount
	}

	var batch []measurement.Record
	for r := range records {
		batch = append(batch, r)
		if len(batch) < sendRecordsAmount {
			continue // we haven't collected enough records to send yet
		}
		if err := s.send(ctx, batch); err != nil {
			glog.Warningf("error sending records: %s\n", err)
		}
		batch = nil
	}
	if len(batch) > 0 {
		if err := s.send(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) send(ctx context.Context, batch []measurement.Record) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("error marshalling records to JSON: %w", err)
	}
	url := strings.TrimRight(s.Server, "/") + CollectEndpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error POSTing records: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading POST body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server %s answered %s: %s", s.Server, resp.Status, strings.TrimSpace(string(respBody)))
	}

	collected := CollectResponse{}
	if err := json.Unmarshal(respBody, &collected); err != nil {
		glog.Warningf("unable to decode collect response: %s\n", err)
	}
	glog.Infof("submitted %d records to server %s", collected.RecordCount, s.Server)
	return nil
}
