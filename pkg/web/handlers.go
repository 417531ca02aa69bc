package web

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pion/webrtc/v3"
	"github.com/teslashibe/go-lumacam/pkg/camera"
	"github.com/teslashibe/go-lumacam/pkg/capture"
	"github.com/teslashibe/go-lumacam/pkg/hub"
)

const offerTimeout = 10 * time.Second

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// handleStatus returns the pipeline snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	st := s.pipeline.Status()
	return c.JSON(fiber.Map{
		"pipeline":      st,
		"luma_clients":  s.lumaHub.ClientCount(),
		"preview_peers": s.previewPeers(),
	})
}

func (s *Server) previewPeers() int {
	if s.preview == nil {
		return 0
	}
	return s.preview.Peers()
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Manager().GetConfig())
}

// handleUpdateConfig applies a partial update such as
// {"preset":"720p"} or {"lens":"front","flash":"auto"}.
func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	var patch camera.Patch
	if err := c.BodyParser(&patch); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	cfg, err := s.pipeline.Manager().Update(patch)
	if err != nil {
		return errorJSON(c, fiber.StatusUnprocessableEntity, err)
	}
	return c.JSON(cfg)
}

func (s *Server) handleListPresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"names":   camera.PresetNames(),
		"presets": camera.Presets(),
	})
}

func (s *Server) handleToggleLens(c *fiber.Ctx) error {
	cfg, err := s.pipeline.Manager().ToggleLens()
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, err)
	}
	return c.JSON(cfg)
}

func (s *Server) handleCycleFlash(c *fiber.Ctx) error {
	cfg, err := s.pipeline.Manager().CycleFlash()
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, err)
	}
	return c.JSON(cfg)
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	out, err := s.pipeline.Capture(c.UserContext())
	if errors.Is(err, capture.ErrNoFrame) {
		return errorJSON(c, fiber.StatusServiceUnavailable, err)
	}
	if err != nil {
		s.logger.Error("capture failed", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	s.logger.Info("photo captured", "path", out.Path, "flash_fired", out.Meta.FlashFired)
	return c.Status(fiber.StatusCreated).JSON(out)
}

func (s *Server) handleListCaptures(c *fiber.Ctx) error {
	if s.store == nil {
		return errorJSON(c, fiber.StatusNotImplemented, errors.New("capture index disabled"))
	}
	list, err := s.store.List(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	if list == nil {
		list = []capture.Output{}
	}
	return c.JSON(list)
}

// handlePreviewOffer answers a browser SDP offer.
func (s *Server) handlePreviewOffer(c *fiber.Ctx) error {
	if s.preview == nil {
		return errorJSON(c, fiber.StatusNotImplemented, errors.New("webrtc preview disabled"))
	}

	var offer webrtc.SessionDescription
	if err := c.BodyParser(&offer); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if offer.Type != webrtc.SDPTypeOffer {
		return errorJSON(c, fiber.StatusBadRequest, errors.New("expected an SDP offer"))
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), offerTimeout)
	defer cancel()
	answer, id, err := s.preview.Answer(ctx, offer)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(fiber.Map{
		"peer":   id,
		"answer": answer,
	})
}

// handleLumaWS sends the current summary, then streams readings.
func (s *Server) handleLumaWS(conn *websocket.Conn) {
	client := hub.NewClient(s.lumaHub, conn)
	if client == nil {
		return
	}
	if last, ok := s.pipeline.Tracker().Last(); ok {
		data, _ := json.Marshal(LumaReading{Luma: last, Time: time.Now()})
		if err := client.Send(hub.Message{Type: hub.JSONMessage, Data: data}); err != nil {
			s.logger.Debug("luma greeting failed", "error", err)
		}
	}
	client.Run()
}

// handlePreviewWS streams JPEG preview frames as binary messages.
func (s *Server) handlePreviewWS(conn *websocket.Conn) {
	client := hub.NewClient(s.previewHub, conn)
	if client == nil {
		return
	}
	client.Run()
}
