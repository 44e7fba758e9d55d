package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/kitsune-cli/kitsune/aniskip"
	"github.com/kitsune-cli/kitsune/auth"
	"github.com/kitsune-cli/kitsune/color"
	"github.com/kitsune-cli/kitsune/config"
	"github.com/kitsune-cli/kitsune/engine"
	"github.com/kitsune-cli/kitsune/engine/hls"
	"github.com/kitsune-cli/kitsune/filesystem"
	"github.com/kitsune-cli/kitsune/icon"
	"github.com/kitsune-cli/kitsune/key"
	"github.com/kitsune-cli/kitsune/log"
	"github.com/kitsune-cli/kitsune/metrics"
	"github.com/kitsune-cli/kitsune/network"
	"github.com/kitsune-cli/kitsune/player"
	"github.com/kitsune-cli/kitsune/session"
	"github.com/kitsune-cli/kitsune/skip"
	"github.com/kitsune-cli/kitsune/style"
	"github.com/kitsune-cli/kitsune/tui"
	"github.com/kitsune-cli/kitsune/util"
	"github.com/kitsune-cli/kitsune/where"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	closeTimeout      = 10 * time.Second
	skipLookupTimeout = 10 * time.Second
)

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringP("spec", "f", "", "Path to the episode spec JSON, or - to read it from stdin")
	lo.Must0(playCmd.MarkFlagRequired("spec"))
	lo.Must0(playCmd.MarkFlagFilename("spec", "json"))

	playCmd.Flags().Float64P("start", "t", -1, "Start at this position in seconds instead of the stored one")
	playCmd.Flags().IntP("mal-id", "m", 0, "MyAnimeList id used to look up intro and outro windows")
	playCmd.Flags().Bool("no-tui", false, "Print session events instead of showing the dashboard")

	playCmd.Flags().BoolP("auto-skip", "a", false, "Seek past intro and outro windows automatically")
	lo.Must0(viper.BindPFlag(key.PlayerAutoSkip, playCmd.Flags().Lookup("auto-skip")))

	playCmd.Flags().String("proxy", "", "m3u8 proxy base URL for manifests and subtitles")
	lo.Must0(viper.BindPFlag(key.EngineProxyURL, playCmd.Flags().Lookup("proxy")))
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Play an episode in the media player",
	Long: `Play an episode described by a spec file in the media player.

Watch progress is resumed and saved for the signed-in owner.`,
	Example: "  kitsune play --spec episode.json\n  curl -s https://example.org/episode/42 | kitsune play -f -",
	Run: func(cmd *cobra.Command, args []string) {
		spec, err := readSpec(lo.Must(cmd.Flags().GetString("spec")))
		handleErr(err)

		if start := lo.Must(cmd.Flags().GetFloat64("start")); start >= 0 {
			spec.InitialSeekSeconds = &start
		}
		if malID := lo.Must(cmd.Flags().GetInt("mal-id")); malID > 0 {
			spec.MalID = malID
		}

		handleErr(requirePlayer(viper.GetString(key.PlayerBinary)))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		err = play(ctx, spec, lo.Must(cmd.Flags().GetBool("no-tui")))
		stop()
		handleErr(err)
	},
}

// readSpec decodes a spec from path, or from stdin when path is "-".
func readSpec(path string) (session.Spec, error) {
	var (
		spec   session.Spec
		reader io.Reader
	)

	if path == "-" {
		reader = os.Stdin
	} else {
		file, err := filesystem.API().Open(path)
		if err != nil {
			return spec, err
		}
		defer util.Ignore(file.Close)
		reader = file
	}

	if err := json.NewDecoder(reader).Decode(&spec); err != nil {
		return spec, fmt.Errorf("invalid spec %s: %w", path, err)
	}
	return spec, nil
}

func play(ctx context.Context, spec session.Spec, headless bool) error {
	store, closeStore, err := openBackend(ctx)
	if err != nil {
		return err
	}
	defer util.Ignore(closeStore)

	owner, err := auth.Owner()
	if err != nil {
		log.Warn("reading owner from keyring: ", err)
	}
	if owner == "" {
		log.Info("nobody is signed in, watch progress will not be saved")
	}

	surface := player.NewMPV(viper.GetString(key.PlayerBinary))
	if err := surface.Start(ctx); err != nil {
		return err
	}
	defer util.Ignore(surface.Close)

	client := network.NewStreamClient(viper.GetBool(key.EngineTLSFingerprint))
	adapter := engine.NewAdapter(hls.Factory(client), engineConfig())

	if addr := viper.GetString(key.MetricsAddress); addr != "" {
		defer serveMetrics(addr)()
	}

	mode := lo.Ternary(viper.GetBool(key.PlayerAutoSkip), skip.Auto, skip.Manual)
	newController := func(host session.Host) *session.Controller {
		return session.New(session.Options{
			Surface:          surface,
			Adapter:          adapter,
			Host:             host,
			Progress:         store,
			Bookmarks:        store,
			Owner:            owner,
			Mode:             mode,
			Skips:            skipLookup(),
			ProgressOptions:  progressOptions(),
			InitialSeekDelay: config.Millis(key.PlayerInitialSeekDelay),
			LoadSettle:       config.Millis(key.TeardownLoadSettle),
			ProxyURL:         viper.GetString(key.EngineProxyURL),
		})
	}

	if !headless {
		return tui.Run(ctx, &tui.Options{
			Spec:    spec,
			Surface: surface,
			Mode:    mode,
			Start: func(host session.Host) (*session.Controller, error) {
				return newController(host), nil
			},
			ModeChanged: func(mode skip.Mode) error {
				return writeConfig(key.PlayerAutoSkip, mode == skip.Auto)
			},
		})
	}

	controller := newController(printHost{})
	if err := controller.Submit(spec); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-surface.Wait():
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return controller.Close(closeCtx)
}

// skipLookup returns nil when AniSkip lookups are disabled.
func skipLookup() session.Lookup {
	if !viper.GetBool(key.AniskipEnable) {
		return nil
	}

	client := aniskip.New(network.NewAPIClient(skipLookupTimeout), aniskip.BaseURL, where.Skips())
	return func(ctx context.Context, spec session.Spec) (skip.Windows, error) {
		if spec.MalID <= 0 || spec.EpisodeNumber <= 0 {
			return skip.Windows{}, nil
		}
		return client.Windows(ctx, spec.MalID, spec.EpisodeNumber)
	}
}

func metricsRouter(registry *prometheus.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return r
}

// serveMetrics exposes the pipeline collectors on addr until the returned function is called.
func serveMetrics(addr string) (shutdown func()) {
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	server := &http.Server{
		Addr:              addr,
		Handler:           metricsRouter(registry),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("metrics server: ", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}

// printHost reports session events on stderr when the dashboard is off.
type printHost struct{}

func (printHost) SkipControl(visible bool, label string) {
	if visible {
		printEvent(icon.Skip, color.Yellow, label+" window, run with the dashboard or --auto-skip to skip it")
	}
}

func (printHost) Notice(message string) {
	printEvent(icon.Warn, color.Red, message)
}

func (printHost) StateChanged(state session.State) {
	printEvent(icon.Play, color.Purple, state.String())
}

func (printHost) Tracks(info engine.TrackInfo) {
	log.Debugf("tracks: %d levels, %d audio, %d subtitles", len(info.Levels), len(info.Audio), len(info.Subtitles))
}

func printEvent(i icon.Icon, c lipgloss.Color, message string) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s\n", style.Fg(c)(icon.Get(i)), message)
}
