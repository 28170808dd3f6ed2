package perf

import (
	"fmt"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/mavkit/mavconn/cmd/util"
	"github.com/mavkit/mavconn/mavlink"
	"github.com/mavkit/mavconn/transport"
	"github.com/mavkit/mavconn/transport/common"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf <endpoint>",
		Short: "Throughput measurement tool",
		Long: `Open a channel and pump frames through it for a fixed duration,
reporting transmit and receive rates. Point it at an echoing peer (e.g. a
proxy bridged back to itself) to measure the full path, e.g.

  mavconn perf --duration 10s --payload-size 9 tcp://localhost:5760`,
		Args:    cobra.ExactArgs(1),
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	key := "duration"
	PerfCmd.Flags().Duration(key, 10*time.Second, cmdUtil.WrapString("How long to run the measurement"))

	key = "payload-size"
	PerfCmd.Flags().Int(key, 9, cmdUtil.WrapString("Payload size of the pumped frames in bytes"))

	key = "rate"
	PerfCmd.Flags().Int(key, 0, cmdUtil.WrapString("Target send rate in frames per second (0 = unthrottled)"))
}

func processConfig(cmd *cobra.Command, _ []string) error {
	return cmdUtil.BindCommandFlags(cmd)
}

func run(_ *cobra.Command, args []string) error {
	conf := cmdUtil.GetChannelConfig()
	common.InitLoggers(conf.LogLevel)

	payloadSize := viper.GetInt("payload-size")
	if payloadSize < 0 || payloadSize > mavlink.MaxPayloadLen {
		return fmt.Errorf("invalid payload size %d (max %d)", payloadSize, mavlink.MaxPayloadLen)
	}

	ch, err := cmdUtil.OpenChannel(args[0], conf)
	if err != nil {
		return fmt.Errorf("open %s: %v", args[0], err)
	}
	defer ch.Close()

	fmt.Println("Configuration:")
	fmt.Println(conf.String())

	registry := metrics.NewRegistry()
	txMeter := metrics.NewRegisteredMeter("tx.frames", registry)
	rxMeter := metrics.NewRegisteredMeter("rx.frames", registry)
	rxBytes := metrics.NewRegisteredMeter("rx.bytes", registry)

	ch.OnMessage(func(ev transport.MessageEvent) {
		rxMeter.Mark(1)
		rxBytes.Mark(int64(ev.Message.WireSize()))
	})

	closed := make(chan struct{})
	ch.OnClosed(func() { close(closed) })

	duration := viper.GetDuration("duration")
	rate := viper.GetInt("rate")
	deadline := time.After(duration)

	var throttle <-chan time.Time
	if rate > 0 {
		ticker := time.NewTicker(time.Second / time.Duration(rate))
		defer ticker.Stop()
		throttle = ticker.C
	}

	msg := &mavlink.Message{
		SysID:   conf.SystemID,
		CompID:  conf.ComponentID,
		Payload: make([]byte, payloadSize),
	}

	fmt.Printf("pumping %d-byte frames for %s...\n", msg.WireSize(), duration)
	start := time.Now()

pump:
	for seq := 0; ; seq++ {
		select {
		case <-deadline:
			break pump
		case <-closed:
			fmt.Println("channel closed mid-run")
			break pump
		default:
		}

		if throttle != nil {
			<-throttle
		}

		msg.Seq = uint8(seq)
		mavlink.Seal(msg)
		ch.SendMessage(msg, conf.SystemID, conf.ComponentID)
		txMeter.Mark(1)
	}
	elapsed := time.Since(start)

	// let in-flight echoes arrive
	time.Sleep(200 * time.Millisecond)

	fmt.Println()
	fmt.Printf("%-16s%d frames in %s (%.0f frames/sec)\n",
		"tx", txMeter.Count(), elapsed.Round(time.Millisecond),
		float64(txMeter.Count())/elapsed.Seconds())
	fmt.Printf("%-16s%d frames (%.0f frames/sec, %.1f KB/sec)\n",
		"rx", rxMeter.Count(),
		float64(rxMeter.Count())/elapsed.Seconds(),
		float64(rxBytes.Count())/elapsed.Seconds()/1024)

	return nil
}
