package list

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"privateer/internal/config"
	"privateer/internal/manifest"
	"privateer/internal/remote"
	"privateer/internal/util"
)

type Info struct {
	Target      string `json:"target"`
	Path        string `json:"path"`
	Present     bool   `json:"present"`
	Blake3Hash  string `json:"blake3_hash,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Datetime    int64  `json:"datetime,omitempty"`
	DatetimeStr string `json:"datetime_str,omitempty"`
}

type Output struct {
	Host     string `json:"host"`
	HostType string `json:"host_type"`
	Path     string `json:"path"`
	Archives []Info `json:"archives"`
	Summary  struct {
		Total   int `json:"total"`
		Present int `json:"present"`
		Missing int `json:"missing"`
	} `json:"summary"`
}

// Run writes a JSON inventory of the archive of every target on h to w.
func Run(ctx context.Context, h *config.Host, targets []config.Target, dial remote.Dialer, w io.Writer) error {
	output := Output{
		Host:     h.Name,
		HostType: string(h.Type),
		Path:     h.Path,
		Archives: []Info{},
	}

	var err error
	if h.Type == config.HostLocal {
		output.Archives, err = listLocal(h, targets)
	} else {
		output.Archives, err = listRemote(ctx, h, targets, dial)
	}
	if err != nil {
		return err
	}

	output.Summary.Total = len(output.Archives)
	for _, info := range output.Archives {
		if info.Present {
			output.Summary.Present++
		} else {
			output.Summary.Missing++
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(output); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func listLocal(h *config.Host, targets []config.Target) ([]Info, error) {
	if _, err := os.Stat(h.Path); err != nil {
		return nil, fmt.Errorf("failed to list host %s: %w", h.Name, err)
	}
	m, err := manifest.Read(manifest.Path(h.Path))
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(targets))
	for _, t := range targets {
		info := Info{Target: t.Name, Path: util.LocalArchivePath(h.Path, t.Name)}
		if st, err := os.Stat(info.Path); err == nil {
			info.Present = true
			info.Size = st.Size()
			info.Datetime = st.ModTime().Unix()
		}
		if e := m.Find(t.Name); e != nil && info.Present {
			info.Blake3Hash = e.Blake3Hash
			info.Datetime = e.Datetime
		}
		if info.Datetime != 0 {
			info.DatetimeStr = time.Unix(info.Datetime, 0).Format("2006-01-02 15:04:05")
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func listRemote(ctx context.Context, h *config.Host, targets []config.Target, dial remote.Dialer) ([]Info, error) {
	tr, err := dial(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to host %s: %w", h.Name, err)
	}
	defer tr.Close()

	infos := make([]Info, 0, len(targets))
	for _, t := range targets {
		info := Info{Target: t.Name, Path: util.RemoteArchivePath(h.Path, t.Name)}
		info.Present, err = tr.Probe(ctx, info.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to probe %s on host %s: %w", info.Path, h.Name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
