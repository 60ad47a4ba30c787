// Package server serves an Aikuma data folder to the transcriber: the
// recording index, audio, envelopes, map files, speaker pictures and
// transcripts.
package server

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/langtech/transcriber/aikuma"
	"github.com/langtech/transcriber/transcript"
)

type Server struct {
	app    *fiber.App
	layout aikuma.Layout
	log    logrus.FieldLogger
}

// New returns a server for the Aikuma folder at base.
func New(base string, log logrus.FieldLogger) *Server {
	s := &Server{
		app:    fiber.New(fiber.Config{DisableStartupMessage: true, ErrorHandler: errorHandler}),
		layout: aikuma.Layout{Base: base},
		log:    log,
	}
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET,PUT,HEAD,OPTIONS",
	}))
	s.app.Use(s.logRequest)

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.Get("/index.json", s.index)

	s.app.Get("/recording/:uuid", validUUID, s.recordingFile(aikuma.ExtWAV))
	s.app.Get("/recording/:uuid/mapfile", validUUID, s.recordingFile(aikuma.ExtMap))
	s.app.Get("/recording/:uuid/shapefile", validUUID, s.recordingFile(aikuma.ExtShape))
	s.app.Get("/speaker/:uuid/image", validUUID, s.speakerImage(false))
	s.app.Get("/speaker/:uuid/smallimage", validUUID, s.speakerImage(true))
	s.app.Get("/transcript/:uuid", validUUID, s.recordingFile(aikuma.ExtTranscript))
	s.app.Put("/transcript/:uuid", validUUID, s.putTranscript)
	return s
}

// App exposes the fiber app, mostly for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run listens on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(addr) }()
	s.log.WithFields(logrus.Fields{"addr": addr, "data": s.layout.Base}).Info("serving")
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(sctx)
	}
}

func (s *Server) logRequest(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		status = fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
	}
	l := s.log.WithFields(logrus.Fields{
		"method":  c.Method(),
		"path":    c.Path(),
		"status":  status,
		"latency": time.Since(start).String(),
	})
	if status >= fiber.StatusInternalServerError {
		l.WithError(err).Error("request failed")
	} else {
		l.Info("request")
	}
	return err
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(fiber.Map{"status": "error", "message": err.Error()})
}

func validUUID(c *fiber.Ctx) error {
	if !aikuma.IsUUID(c.Params("uuid")) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid uuid")
	}
	return c.Next()
}

// index serves index.json from the folder, building it when absent.
func (s *Server) index(c *fiber.Ctx) error {
	if b, err := os.ReadFile(s.layout.IndexPath()); err == nil {
		c.Type("json")
		return c.Send(b)
	}
	ix, err := aikuma.Scan(s.layout.Base)
	if err != nil {
		return err
	}
	return c.JSON(ix)
}

func (s *Server) recordingFile(ext string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.sendFile(c, s.layout.RecordingPath(c.Params("uuid"), ext))
	}
}

func (s *Server) speakerImage(small bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return s.sendFile(c, s.layout.SpeakerImage(c.Params("uuid"), small))
	}
}

func (s *Server) sendFile(c *fiber.Ctx, path string) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fiber.NewError(fiber.StatusNotFound, "not found: "+c.Path())
	}
	if err != nil {
		return err
	}
	c.Type(filepath.Ext(path))
	return c.Send(b)
}

// putTranscript stores an Aikuma transcript after checking that it parses.
func (s *Server) putTranscript(c *fiber.Ctx) error {
	id := c.Params("uuid")
	body := c.Body()
	doc, err := transcript.ParseAikuma(bytes.NewReader(body))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	path := s.layout.RecordingPath(id, aikuma.ExtTranscript)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"uuid": id, "segments": len(doc.Segments)}).Info("transcript stored")
	return c.SendStatus(fiber.StatusNoContent)
}
