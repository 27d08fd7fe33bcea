package node_test

import (
	"net"
	"strings"

	"sensekit-server/internal/infra/node"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Node", func() {
	ginkgo.Context("GetNodeInfo", func() {
		ginkgo.It("should return node information with all fields", func() {
			nodeInfo := node.GetNodeInfo()

			gomega.Expect(nodeInfo.ID).To(gomega.HaveLen(36))
			gomega.Expect(nodeInfo.Hostname).NotTo(gomega.BeEmpty())
			gomega.Expect(net.ParseIP(nodeInfo.IPAddress)).NotTo(gomega.BeNil())
			gomega.Expect(nodeInfo.Version).To(gomega.Equal(node.Version))
			gomega.Expect(nodeInfo.CommitHash).To(gomega.Equal(node.CommitHash))
		})

		ginkgo.It("should return the same node on multiple calls", func() {
			gomega.Expect(node.GetNodeInfo()).To(gomega.Equal(node.GetNodeInfo()))
		})
	})

	ginkgo.Context("ClientID", func() {
		ginkgo.It("should suffix the prefix with a stable slice of the node id", func() {
			nodeInfo := node.GetNodeInfo()
			clientID := nodeInfo.ClientID("sensekit_ingestor")

			gomega.Expect(clientID).To(gomega.HavePrefix("sensekit_ingestor-"))
			gomega.Expect(strings.TrimPrefix(clientID, "sensekit_ingestor-")).To(gomega.Equal(nodeInfo.ID[:8]))
			gomega.Expect(nodeInfo.ClientID("sensekit_ingestor")).To(gomega.Equal(clientID))
		})
	})
})
