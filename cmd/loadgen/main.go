// loadgen floods the sync ingestion topic with synthetic session reports
// so the debounce, cache and fan-out paths can be exercised under load.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/IBM/sarama"
)

// SyncReport mirrors the sync message format consumed by the server
type SyncReport struct {
	PlayerID   string           `json:"playerId"`
	Nickname   string           `json:"nickname,omitempty"`
	Avatar     string           `json:"avatar,omitempty"`
	GameScores map[string]int64 `json:"gameScores"`
}

var playerPrefixes = []string{
	"Phoenix", "Shadow", "Thunder", "Storm", "Blaze", "Ninja", "Dragon", "Wolf", "Hawk", "Viper",
	"Ghost", "Titan", "Frost", "Cyber", "Nova", "Raven", "Omega", "Alpha", "Delta", "Sigma",
	"Ace", "Bolt", "Crash", "Dash", "Edge", "Flash", "Glitch", "Haze", "Ion", "Jade",
	"Knight", "Luna", "Mystic", "Neon", "Orion", "Pulse", "Quantum", "Rebel", "Spark", "Turbo",
}

var gameIDs = []string{
	"neon-block", "star-dodge", "pixel-runner", "orbit-catch", "tile-flip", "rocket-climb",
}

func getPlayerName(idx int) string {
	prefixIdx := idx % len(playerPrefixes)
	suffix := idx/len(playerPrefixes) + 1
	return fmt.Sprintf("%s%d", playerPrefixes[prefixIdx], suffix)
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9092", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "leaderboard-sync", "Kafka topic")
	totalPlayers := flag.Int("players", 1000, "Total number of players to simulate")
	updatesPerSecond := flag.Int("rate", 100, "Sync reports per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("Leaderboard sync load generator")
	fmt.Printf("  Brokers:       %s\n", *brokers)
	fmt.Printf("  Topic:         %s\n", *topic)
	fmt.Printf("  Total players: %d\n", *totalPlayers)
	fmt.Printf("  Reports/sec:   %d\n", *updatesPerSecond)
	fmt.Println()

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Flush.Messages = 100
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})

	// Send message helper
	sendReport := func(report SyncReport) {
		data, err := json.Marshal(report)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(report.PlayerID),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	randomReport := func(playerIdx int) SyncReport {
		// One to three games per session, scores drifting upward over
		// time so the monotone merge keeps producing movement
		scores := make(map[string]int64)
		for i := 0; i < rand.Intn(3)+1; i++ {
			game := gameIDs[rand.Intn(len(gameIDs))]
			scores[game] = int64(rand.Intn(5000) + 100)
		}
		return SyncReport{
			PlayerID:   getPlayerName(playerIdx),
			Nickname:   getPlayerName(playerIdx),
			GameScores: scores,
		}
	}

	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*updatesPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var updateCount int64

	shutdown := func(reason string) {
		fmt.Printf("\n%s\n", reason)
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			shutdown("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				shutdown("Duration reached, shutting down...")
				return
			}

			// 70% chance to pick from the top 20 players to create
			// movement near the head of the board
			var playerIdx int
			if *totalPlayers > 20 && rand.Intn(100) < 70 {
				playerIdx = rand.Intn(20)
			} else {
				playerIdx = rand.Intn(*totalPlayers)
			}

			sendReport(randomReport(playerIdx))
			atomic.AddInt64(&updateCount, 1)

		case <-statsTicker.C:
			updates := atomic.LoadInt64(&updateCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Reports: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				updates,
				success,
				errors,
			)
		}
	}
}
