package mqtt_test

import (
	"time"

	"sensor-bridge/internal/infra/mqtt"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("MQTT Client", func() {
	ginkgo.Context("SimpleClientOpts", func() {
		var opts mqtt.SimpleClientOpts

		ginkgo.BeforeEach(func() {
			opts = mqtt.SimpleClientOpts{
				Broker:   "tcp://localhost:1883",
				ClientID: "bridge-test",
				Username: "test-user",
				Password: "test-pass",
			}
		})

		ginkgo.It("should map onto paho options", func() {
			pahoOpts := opts.ClientOptions()

			gomega.Expect(pahoOpts.Servers).To(gomega.HaveLen(1))
			gomega.Expect(pahoOpts.Servers[0].String()).To(gomega.Equal("tcp://localhost:1883"))
			gomega.Expect(pahoOpts.ClientID).To(gomega.Equal("bridge-test"))
			gomega.Expect(pahoOpts.Username).To(gomega.Equal("test-user"))
			gomega.Expect(pahoOpts.Password).To(gomega.Equal("test-pass"))
			gomega.Expect(pahoOpts.AutoReconnect).To(gomega.BeTrue())
			gomega.Expect(pahoOpts.ConnectTimeout).To(gomega.Equal(5 * time.Second))
		})

		ginkgo.It("should honour a custom connect timeout", func() {
			opts.ConnectTimeout = time.Second
			gomega.Expect(opts.ClientOptions().ConnectTimeout).To(gomega.Equal(time.Second))
		})
	})

	ginkgo.Context("NewSimpleClient", func() {
		ginkgo.It("should fail when the broker is unreachable", func() {
			_, err := mqtt.NewSimpleClient(mqtt.SimpleClientOpts{
				Broker:         "tcp://127.0.0.1:1",
				ClientID:       "bridge-test",
				ConnectTimeout: time.Second,
			})
			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Context("Message", func() {
		ginkgo.It("should be satisfied by paho messages", func() {
			var _ mqtt.Message = (paho.Message)(nil)
		})
	})
})
