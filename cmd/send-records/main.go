// send-records publishes integer-keyed string records to the consumer's
// topic so the pipeline has something to read.
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"

	"fluxgate/internal/logging"
	"fluxgate/source/kafka"

	"github.com/IBM/sarama"
)

func main() {
	brokers := flag.String("brokers", "localhost:9092", "comma separated broker list")
	topic := flag.String("topic", "reactive-test", "target topic")
	count := flag.Int("count", 20, "number of records")
	flag.Parse()

	logging.InitFromEnv()
	log := logging.Named("send-records")

	sc := sarama.NewConfig()
	sc.ClientID = "sample-producer"
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(strings.Split(*brokers, ","), sc)
	if err != nil {
		fatal(err)
	}
	defer p.Close()

	for i := 0; i < *count; i++ {
		msg := &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.ByteEncoder(kafka.EncodeInteger(int32(i))),
			Value: sarama.StringEncoder(fmt.Sprintf("Message_%d", i)),
		}
		part, off, err := p.SendMessage(msg)
		if err != nil {
			fatal(err)
		}
		log.Info("record sent", "key", i, "partition", part, "offset", off)
	}
}

func fatal(err error) {
	log.Fatalf("send-records: %v", err)
}
