package events

// Topics recorded against a contract aggregate.
const (
	TopicContractSubmitted      = "contract.submitted"
	TopicContractDelivered      = "contract.delivered"
	TopicContractDeliveryFailed = "contract.delivery_failed"
	TopicContractArchived       = "contract.archived"
)

// ContractTopics lists every contract lifecycle topic in emission order.
func ContractTopics() []string {
	return []string{
		TopicContractSubmitted,
		TopicContractDelivered,
		TopicContractDeliveryFailed,
		TopicContractArchived,
	}
}
