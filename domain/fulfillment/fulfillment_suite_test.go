package fulfillment_test

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestFulfillment(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fulfillment Suite")
}
