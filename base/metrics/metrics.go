package metrics

const (
	ClientReqsSentN = "timeoracle_client_requests_sent_total"
	ClientReqsSentH = "The total number of NTP requests sent"

	ClientRespsAcceptedN = "timeoracle_client_responses_accepted_total"
	ClientRespsAcceptedH = "The total number of NTP responses accepted"

	ClientFailuresN = "timeoracle_client_failures_total"
	ClientFailuresH = "The total number of failed NTP queries by kind"

	OracleRequestsN = "timeoracle_requests_total"
	OracleRequestsH = "The total number of consensus computations by method"

	OracleQueryDurationN = "timeoracle_query_duration_seconds"
	OracleQueryDurationH = "Time spent querying servers and computing consensus"
)
