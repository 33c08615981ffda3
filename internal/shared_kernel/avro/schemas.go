package avro

// ReadingSchema is the record sent for every active power reading.
const ReadingSchema = `{
	"type": "record",
	"name": "ActivePowerRecord",
	"namespace": "sensorbridge.records",
	"fields": [
		{"name": "identifier", "type": "string"},
		{"name": "timestamp", "type": "long"},
		{"name": "valueInW", "type": "int"}
	]
}`
