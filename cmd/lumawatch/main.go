// lumawatch connects to a running lumacam and prints luma readings.
//
//	lumawatch -addr localhost:8080          # stream readings
//	lumawatch -addr localhost:8080 -status  # print status and exit
//	lumawatch -addr localhost:8080 -capture # take a photo and exit
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-lumacam/internal/config"
	"github.com/teslashibe/go-lumacam/internal/httpc"
	"github.com/teslashibe/go-lumacam/internal/log"
	"github.com/teslashibe/go-lumacam/pkg/capture"
	"github.com/teslashibe/go-lumacam/pkg/web"
)

const barWidth = 40

func main() {
	addr := flag.String("addr", "localhost:"+config.Port(), "lumacam host:port")
	status := flag.Bool("status", false, "Print pipeline status and exit")
	takePhoto := flag.Bool("capture", false, "Capture a photo and exit")
	count := flag.Int("n", 0, "Exit after n readings (0 streams forever)")
	flag.Parse()

	logger := log.Init(config.LogLevel(), "")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	api := httpc.New("http://" + *addr)

	var err error
	switch {
	case *status:
		err = printStatus(ctx, api)
	case *takePhoto:
		err = capturePhoto(ctx, api)
	default:
		err = watch(ctx, *addr, *count)
	}
	if err != nil {
		logger.Error("lumawatch failed", "error", err)
		os.Exit(1)
	}
}

func printStatus(ctx context.Context, api *httpc.Client) error {
	var st map[string]interface{}
	if err := api.GetJSON(ctx, "/api/status", &st); err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(st)
}

func capturePhoto(ctx context.Context, api *httpc.Client) error {
	var out capture.Output
	if err := api.PostJSON(ctx, "/api/capture", nil, &out); err != nil {
		return err
	}
	fmt.Printf("%s  %dx%d  luma=%.1f flash=%s fired=%v\n",
		out.Path, out.Width, out.Height, out.Meta.Luma, out.Meta.FlashMode, out.Meta.FlashFired)
	return nil
}

func watch(ctx context.Context, addr string, count int) error {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws/luma"}

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u.String(), err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	for n := 0; count == 0 || n < count; n++ {
		var r web.LumaReading
		if err := conn.ReadJSON(&r); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		fmt.Println(formatReading(r))
	}
	return nil
}

// formatReading renders a reading as a timestamp, value and bar.
func formatReading(r web.LumaReading) string {
	filled := int(r.Luma / 255 * barWidth)
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return fmt.Sprintf("%s %6.2f |%s%s|",
		r.Time.Format("15:04:05.000"), r.Luma,
		strings.Repeat("#", filled), strings.Repeat(" ", barWidth-filled))
}
