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
	"github.com/google/uuid"
)

// Envelope mirrors the ingestion wire format
type Envelope struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

type matchEvent struct {
	MatchID    string            `json:"match_id"`
	Type       string            `json:"type"`
	Minute     int               `json:"minute"`
	PlayerID   string            `json:"player_id,omitempty"`
	PlayerName string            `json:"player_name,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

type attendance struct {
	PlayerID    string    `json:"player_id"`
	EventID     string    `json:"event_id"`
	Status      int       `json:"status"`
	RespondedAt time.Time `json:"responded_at"`
}

type scheduledEvent struct {
	ID       string    `json:"id"`
	TeamID   string    `json:"team_id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	StartAt  time.Time `json:"start_at"`
	Location string    `json:"location,omitempty"`
}

var playerNames = []string{
	"Alvarez", "Bakker", "Costa", "Dubois", "Eriksen", "Fischer", "Garcia", "Hansen",
	"Ivanov", "Jansen", "Kovacs", "Larsen", "Moreau", "Nilsen", "Olsen", "Petrov",
	"Quint", "Rossi", "Silva", "Tanaka", "Ueda", "Vogel", "Weber", "Xavier",
}

func playerID(idx int) string {
	return fmt.Sprintf("player-%03d", idx)
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "team-events", "Kafka topic")
	teamID := flag.String("team", "team-1", "Team ID")
	squadSize := flag.Int("players", 18, "Squad size")
	eventsPerSecond := flag.Int("rate", 20, "Events per second")
	duration := flag.Duration("duration", 0, "Duration to run (0 = forever)")
	flag.Parse()

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  🚀 Team Event Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:        %s\n", *brokers)
	fmt.Printf("  Topic:          %s\n", *topic)
	fmt.Printf("  Team:           %s\n", *teamID)
	fmt.Printf("  Squad size:     %d\n", *squadSize)
	fmt.Printf("  Events/sec:     %d\n", *eventsPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
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

	// Send message helper, keyed so one match stays on one partition
	sendEnvelope := func(key string, env Envelope) {
		data, err := json.Marshal(env)
		if err != nil {
			log.Printf("Failed to marshal message: %v", err)
			return
		}

		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(key),
			Value: sarama.ByteEncoder(data),
		}

		select {
		case producer.Input() <- msg:
		case <-done:
			return
		}
	}

	// Schedule a match and collect attendance for the whole squad
	matchID := uuid.New().String()
	fmt.Printf("Scheduling match %s...\n", matchID)
	sendEnvelope(matchID, Envelope{
		Kind: "event_created",
		Payload: scheduledEvent{
			ID:       matchID,
			TeamID:   *teamID,
			Name:     "Saturday League Match",
			Category: "match",
			StartAt:  time.Now().Add(48 * time.Hour),
			Location: "Home Ground",
		},
	})

	for i := 0; i < *squadSize; i++ {
		// Roughly: most available, some maybe, a few out
		status := 0
		switch r := rand.Intn(10); {
		case r >= 8:
			status = 2
		case r >= 6:
			status = 1
		}
		sendEnvelope(matchID, Envelope{
			Kind: "attendance",
			Payload: attendance{
				PlayerID:    playerID(i),
				EventID:     matchID,
				Status:      status,
				RespondedAt: time.Now(),
			},
		})
	}
	fmt.Printf("✓ Sent %d attendance responses\n\n", *squadSize)

	sendEnvelope(matchID, Envelope{
		Kind: "match_event",
		Payload: matchEvent{
			MatchID:   matchID,
			Type:      "match_start",
			Minute:    0,
			Timestamp: time.Now(),
		},
	})

	// Start continuous match events
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("Streaming match events (%d/sec)\n", *eventsPerSecond)
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	interval := time.Second / time.Duration(*eventsPerSecond)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	var endTime time.Time
	if *duration > 0 {
		endTime = time.Now().Add(*duration)
	}

	var eventCount int64
	minute := 1

	finish := func(reason string) {
		fmt.Printf("\n\n%s\n", reason)
		close(done)
		producer.AsyncClose()
		wg.Wait()
		fmt.Printf("\n✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	}

	for {
		select {
		case <-sigChan:
			finish("Shutting down...")
			return

		case <-ticker.C:
			if *duration > 0 && time.Now().After(endTime) {
				finish("Duration reached, shutting down...")
				return
			}

			idx := rand.Intn(*squadSize)
			event := matchEvent{
				MatchID:    matchID,
				Minute:     minute,
				PlayerID:   playerID(idx),
				PlayerName: playerNames[idx%len(playerNames)],
				Timestamp:  time.Now(),
			}

			// Mostly goals, occasional cards and substitutions
			switch r := rand.Intn(100); {
			case r < 60:
				event.Type = "goal"
				if rand.Intn(2) == 0 {
					event.Details = map[string]string{"assist_id": playerID(rand.Intn(*squadSize))}
				}
			case r < 75:
				event.Type = "yellow_card"
				event.Details = map[string]string{"reason": "late challenge"}
			case r < 80:
				event.Type = "red_card"
				event.Details = map[string]string{"reason": "second booking"}
			default:
				inIdx := rand.Intn(*squadSize)
				event.Type = "substitution"
				event.Details = map[string]string{
					"player_out_id":   playerID(idx),
					"player_in_id":    playerID(inIdx),
					"player_out_name": playerNames[idx%len(playerNames)],
					"player_in_name":  playerNames[inIdx%len(playerNames)],
				}
			}

			sendEnvelope(matchID, Envelope{Kind: "match_event", Payload: event})
			atomic.AddInt64(&eventCount, 1)
			if minute < 90 {
				minute++
			}

		case <-statsTicker.C:
			events := atomic.LoadInt64(&eventCount)
			success := atomic.LoadInt64(&successCount)
			errors := atomic.LoadInt64(&errorCount)
			fmt.Printf("[%s] Events: %d | Sent: %d | Errors: %d\n",
				time.Now().Format("15:04:05"),
				events,
				success,
				errors,
			)
		}
	}
}
