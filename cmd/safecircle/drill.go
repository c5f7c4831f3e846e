package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"SafeCircle/internal/alerting"
	"SafeCircle/internal/location"
	"SafeCircle/internal/models"
	"SafeCircle/internal/profile"
	"SafeCircle/pkg/config"
	"SafeCircle/pkg/i18n"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/notification"
	"SafeCircle/pkg/scheduler"

	"github.com/spf13/cobra"
)

// drillOptions 演练参数，意图只写日志不会真正打开
type drillOptions struct {
	name     string
	contacts []string
	kind     string
	channel  string
	lat, lng float64
	stagger  time.Duration
	locale   string
}

func newDrillCmd() *cobra.Command {
	var o drillOptions
	cmd := &cobra.Command{
		Use:   "drill",
		Short: "Run one alert through the full pipeline without a device",
		Example: `  safecircle drill --name Asha --contact "Mom:98765 43210" --contact "Dad:+1-555-123-4567"
  safecircle drill --contact "Ravi:022 555 0101" --kind panic --lat 19.076 --lng 72.8777`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logger.LogConfig{Level: "info"}, "development"); err != nil {
				return err
			}
			return runDrill(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&o.name, "name", "", "sender name")
	cmd.Flags().StringArrayVar(&o.contacts, "contact", nil, `emergency contact as "Name:Phone", repeatable`)
	cmd.Flags().StringVar(&o.kind, "kind", string(models.KindTest), "alert kind: sos, silent, group, panic, test")
	cmd.Flags().StringVar(&o.channel, "channel", "whatsapp", "dispatch channel: whatsapp or sms")
	cmd.Flags().Float64Var(&o.lat, "lat", 0, "fixed latitude, omit to send without a location")
	cmd.Flags().Float64Var(&o.lng, "lng", 0, "fixed longitude")
	cmd.Flags().DurationVar(&o.stagger, "stagger", 200*time.Millisecond, "delay between contacts")
	cmd.Flags().StringVar(&o.locale, "locale", "en", "message locale")
	_ = cmd.MarkFlagRequired("contact")
	return cmd
}

func parseContact(raw string) (models.Contact, error) {
	name, phone, ok := strings.Cut(raw, ":")
	if !ok {
		return models.Contact{}, fmt.Errorf("contact %q: want Name:Phone", raw)
	}
	return models.Contact{Name: strings.TrimSpace(name), Phone: strings.TrimSpace(phone), Relationship: "drill"}, nil
}

func runDrill(ctx context.Context, o drillOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	profiles := profile.New(nil)
	if err := profiles.SetName(ctx, o.name); err != nil {
		return err
	}
	for _, raw := range o.contacts {
		c, err := parseContact(raw)
		if err != nil {
			return err
		}
		if _, err := profiles.AddContact(ctx, c); err != nil {
			return err
		}
	}

	var provider location.Provider = location.Unsupported{}
	if o.lat != 0 || o.lng != 0 {
		provider = location.Static(models.LocationFix{Latitude: o.lat, Longitude: o.lng, Accuracy: 5})
	}

	cfg := config.DefaultAlerting()
	cfg.Channel = o.channel
	cfg.Stagger = o.stagger
	cfg.Locale = o.locale
	cfg.LocationTimeout = 2 * time.Second
	cfg.DispatchRetries = 0

	msgs, err := i18n.NewI18nSupport(o.locale)
	if err != nil {
		return err
	}
	rec := &notification.RecordingLauncher{}
	launcher := notification.LauncherFunc(func(ctx context.Context, intent notification.Intent) error {
		_ = rec.Launch(ctx, intent)
		return notification.LogLauncher{Logger: logger.Lg}.Launch(ctx, intent)
	})

	sched := scheduler.New()
	defer sched.Stop()
	engine, err := alerting.NewEngine(alerting.Options{
		Config:     cfg,
		Profiles:   profiles,
		Provider:   provider,
		Dispatcher: notification.NewIntentDispatcher(launcher),
		Messages:   msgs,
		Scheduler:  sched,
		Logger:     logger.Lg,
	})
	if err != nil {
		return err
	}

	alert, err := engine.TriggerAlert(ctx, models.AlertKind(o.kind), "drill")
	if err != nil {
		return err
	}
	if !alert.Decision.Accepted {
		return fmt.Errorf("trigger dropped: %s", alert.Decision.Reason)
	}
	printDrill(out, alert.Payload, alert.Delivery.Wait(), rec.Intents())
	return nil
}

func printDrill(out io.Writer, p models.AlertPayload, results []alerting.Result, intents []notification.Intent) {
	fmt.Fprintf(out, "alert %s from %q at %s\n", p.Kind, p.SenderName, p.TimestampISO)
	fmt.Fprintf(out, "location: %s\n\n", p.LocationText)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTACT\tADDRESS\tOUTCOME\tERROR")
	for _, r := range results {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Contact.Name, r.Address, r.Outcome, errText)
	}
	_ = tw.Flush()

	if len(intents) > 0 {
		fmt.Fprintln(out)
		for _, it := range intents {
			fmt.Fprintln(out, it.URI)
		}
	}
}
