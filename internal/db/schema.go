package db

const recordTable = "health_record"

// SchemaSQL defines the health_record table. input_hash carries a UNIQUE
// index so identical raw inputs are stored once.
const SchemaSQL = `
    DEFINE TABLE IF NOT EXISTS health_record SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS trace_id ON health_record TYPE string;
    DEFINE FIELD IF NOT EXISTS pipeline_version ON health_record TYPE string;
    DEFINE FIELD IF NOT EXISTS intake_json ON health_record TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS structured_output_json ON health_record TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS report_json ON health_record TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS report_text ON health_record TYPE string;
    DEFINE FIELD IF NOT EXISTS safety_audit_json ON health_record TYPE object FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS input_hash ON health_record TYPE string;
    DEFINE FIELD IF NOT EXISTS created_at ON health_record TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS health_record_input_hash ON health_record FIELDS input_hash UNIQUE;
    DEFINE INDEX IF NOT EXISTS health_record_trace_id ON health_record FIELDS trace_id;
`
