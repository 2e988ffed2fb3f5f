package services

import "hash/fnv"

// AutoVerifyThreshold is the stub risk score at or above which a newly
// registered user is verified without manual review.
const AutoVerifyThreshold = 80

// StubRiskScore derives a deterministic 0-100 score from a user id. It is
// a placeholder policy, not fraud detection: real KYC scoring would call
// out to a verification provider. Keeping it pure keeps the verification
// path testable.
func StubRiskScore(userID string) int {
	h := fnv.New32a()
	h.Write([]byte(userID))
	return int(h.Sum32() % 101)
}
