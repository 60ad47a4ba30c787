package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/langtech/transcriber/aikuma"
	"github.com/langtech/transcriber/clients"
	cfg "github.com/langtech/transcriber/config"
	"github.com/langtech/transcriber/event"
	"github.com/langtech/transcriber/orchestrator"
	"github.com/langtech/transcriber/render"
	"github.com/langtech/transcriber/server"
	"github.com/langtech/transcriber/store"
	"github.com/langtech/transcriber/transcript"
	"github.com/langtech/transcriber/waveform"
)

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve an Aikuma folder over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := aikuma.BaseDir(a.conf.Server.DataDir)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.New(base, a.log).Run(ctx, a.conf.Server.Addr)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().String("data", "", "Aikuma folder to serve")
	a.bind("server.addr", cmd.Flags().Lookup("addr"))
	a.bind("server.data_dir", cmd.Flags().Lookup("data"))
	return cmd
}

func (a *app) baseDir(args []string) (string, error) {
	root := a.conf.Paths.Data
	if len(args) > 0 {
		root = args[0]
	}
	return aikuma.BaseDir(root)
}

func (a *app) indexCmd() *cobra.Command {
	var write, groups bool
	cmd := &cobra.Command{
		Use:   "index [folder]",
		Short: "Build the recording index of an Aikuma folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := a.baseDir(args)
			if err != nil {
				return err
			}
			ix, err := aikuma.Scan(base)
			if err != nil {
				return err
			}
			if groups {
				return encodeJSON(cmd.OutOrStdout(), ix.Groups())
			}
			if !write {
				return encodeJSON(cmd.OutOrStdout(), ix)
			}
			path := aikuma.Layout{Base: base}.IndexPath()
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := encodeJSON(f, ix); err != nil {
				f.Close()
				return err
			}
			a.log.WithFields(logrus.Fields{
				"path":         path,
				"originals":    len(ix.Originals),
				"commentaries": len(ix.Commentaries),
			}).Info("index written")
			return f.Close()
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "write index.json into the folder instead of printing it")
	cmd.Flags().BoolVar(&groups, "groups", false, "print originals with their respeakings")
	return cmd
}

func (a *app) shapeCmd() *cobra.Command {
	var force bool
	var index string
	cmd := &cobra.Command{
		Use:   "shape [folder]",
		Short: "Generate missing shape files for the recordings of an Aikuma folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := a.baseDir(args)
			if err != nil {
				return err
			}
			var ix *aikuma.Index
			if index != "" {
				ix, err = aikuma.Load(index)
			} else {
				ix, err = aikuma.Scan(base)
			}
			if err != nil {
				return err
			}
			w := a.conf.Waveform
			rep, err := aikuma.GenerateShapes(cmd.Context(), aikuma.Layout{Base: base}, ix, aikuma.ShapeOptions{
				Workers:     a.conf.Workers,
				MaxWidthPx:  w.MaxWidth,
				MinWindow:   w.MinDur,
				MaxChannels: w.MaxChannels,
				Force:       force,
			}, a.log)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d, skipped %d, failed %d\n",
				len(rep.Generated), len(rep.Skipped), len(rep.Failed))
			if len(rep.Failed) > 0 {
				return fmt.Errorf("%d shape files failed", len(rep.Failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate existing shape files")
	cmd.Flags().StringVar(&index, "index", "", "read recordings from this index.json instead of scanning the folder")
	return cmd
}

// readDocument parses an EAF file by its extension and anything else as
// an Aikuma transcript.
func readDocument(path string) (*transcript.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if strings.EqualFold(filepath.Ext(path), ".eaf") {
		return transcript.ParseEAF(f)
	}
	return transcript.ParseAikuma(f)
}

// writeDocument picks the format from the extension of path: .eaf, .md,
// .json or Aikuma text otherwise. "-" writes Aikuma text to w.
func writeDocument(w io.Writer, path string, doc *transcript.Document, now time.Time) error {
	if path == "-" {
		return transcript.WriteAikuma(w, doc)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".eaf":
		err = transcript.WriteEAF(f, doc, now)
	case ".md":
		err = transcript.WriteMarkdown(f, doc)
	case ".json":
		err = encodeJSON(f, doc)
	default:
		err = transcript.WriteAikuma(f, doc)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a transcript between Aikuma text, EAF, markdown and JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), args[1], doc, time.Now())
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <transcript>",
		Short: "Print speaking time, share and overlap per speaker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			return encodeJSON(cmd.OutOrStdout(), orchestrator.ComputeStats(doc, a.conf.Features))
		},
	}
}

// showSession draws every view of a session as text.
func showSession(s *orchestrator.Session, title string) string {
	sink := render.New()
	var parts []string
	if w := s.Waveform(); w != nil {
		parts = append(parts,
			sink.Waveform(w.Waveform, 4),
			sink.Regions(w),
			sink.Scrollbar(s.Scrollbar(), w.Width()),
		)
	}
	parts = append(parts, sink.Stack(s.Stack()))
	for _, l := range s.Lanes() {
		parts = append(parts, sink.Lane(fmt.Sprintf("respeaking %d", l.ID()), l))
	}
	parts = append(parts, sink.Text(s.TextEdit().Entries()))
	return sink.Frame(title, parts...)
}

func (a *app) showCmd() *cobra.Command {
	var shape string
	var at float64
	cmd := &cobra.Command{
		Use:   "show <transcript>",
		Short: "Draw a transcript, with its waveform when a shape file is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			s := orchestrator.NewSession(a.conf, nil, a.log)
			defer s.Close()
			if shape != "" {
				raw, err := os.ReadFile(shape)
				if err != nil {
					return err
				}
				buf, err := waveform.NewBuffer(raw)
				if err != nil {
					return fmt.Errorf("shapefile %s: %w", shape, err)
				}
				s.Display(buf)
			}
			s.LoadDocument(doc)
			if shape == "" || at > 0 {
				s.Bus().Publish(event.WindowChanged{Beg: at, Dur: a.conf.Waveform.Dur})
			}
			fmt.Fprintln(cmd.OutOrStdout(), showSession(s, filepath.Base(args[0])))
			return nil
		},
	}
	cmd.Flags().StringVar(&shape, "shape", "", "shape file of the recording")
	cmd.Flags().Float64Var(&at, "at", 0, "window start in seconds")
	cmd.Flags().Int("width", 0, "width of the views in columns")
	a.bind("waveform.width", cmd.Flags().Lookup("width"))
	a.bind("lanes.width", cmd.Flags().Lookup("width"))
	return cmd
}

func (a *app) client() *clients.HTTP {
	return clients.NewHTTP(a.conf.Client.BaseURL, cfg.DurSeconds(a.conf.Client.Timeout))
}

func (a *app) openCmd() *cobra.Command {
	var save, put bool
	var from string
	cmd := &cobra.Command{
		Use:   "open <uuid>",
		Short: "Open a recording from a data server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := a.client()
			s := orchestrator.NewSession(a.conf, client, a.log)
			defer s.Close()
			if err := s.Open(ctx, args[0]); err != nil {
				return err
			}
			if from != "" {
				doc, err := readDocument(from)
				if err != nil {
					return err
				}
				s.OpenDocument(ctx, doc)
			}
			if user := os.Getenv("USER"); user != "" {
				s.SetMeta(transcript.MetaUser, user)
			}
			fmt.Fprintln(cmd.OutOrStdout(), showSession(s, args[0]))

			if put {
				var b strings.Builder
				if err := transcript.WriteAikuma(&b, s.Document()); err != nil {
					return err
				}
				if err := client.PutTranscript(ctx, s.Recording(), b.String()); err != nil {
					return err
				}
				a.log.WithFields(logrus.Fields{"recording": s.Recording()}).Info("transcript stored on server")
			}
			if save {
				dir, err := s.Save(time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), dir)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "transcript", "", "load this transcript over the stored one")
	cmd.Flags().BoolVar(&put, "put", false, "store the transcript back on the server")
	cmd.Flags().BoolVar(&save, "save", false, "save a session directory under paths.outputs")
	cmd.Flags().String("server", "", "data server base URL")
	a.bind("client.base_url", cmd.Flags().Lookup("server"))
	return cmd
}

func (a *app) store() (*store.Store, error) {
	if a.conf.Store.URL == "" {
		return nil, fmt.Errorf("store.url is not configured")
	}
	return store.New(a.conf.Store.URL, a.conf.Store.Key, a.conf.Store.Table)
}

func (a *app) syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Copy transcripts to and from the segment store",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "push <transcript>",
		Short: "Replace the stored segments of a recording with a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(args[0])
			if err != nil {
				return err
			}
			id := doc.OriginalUUID()
			if !aikuma.IsUUID(id) {
				return fmt.Errorf("%s: no original_uuid", args[0])
			}
			st, err := a.store()
			if err != nil {
				return err
			}
			if err := st.Save(id, doc); err != nil {
				return err
			}
			a.log.WithFields(logrus.Fields{"recording": id, "segments": len(doc.Segments)}).Info("segments pushed")
			return nil
		},
	}, &cobra.Command{
		Use:   "pull <uuid> [out]",
		Short: "Write the stored segments of a recording as a transcript",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !aikuma.IsUUID(args[0]) {
				return fmt.Errorf("%q: not a recording uuid", args[0])
			}
			st, err := a.store()
			if err != nil {
				return err
			}
			doc, err := st.Load(args[0])
			if err != nil {
				return err
			}
			out := "-"
			if len(args) == 2 {
				out = args[1]
			}
			return writeDocument(cmd.OutOrStdout(), out, doc, time.Now())
		},
	})
	return cmd
}
