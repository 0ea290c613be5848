package surreal

// schemaSQL defines the chunk and source tables. The single %d is the
// HNSW embedding dimension.
const schemaSQL = `
    -- ==========================================================================
    -- CHUNK TABLE (index entries)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS chunk SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS text ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS source_url ON chunk TYPE string;
    DEFINE FIELD IF NOT EXISTS title ON chunk TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS embedding ON chunk TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS updated ON chunk TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS chunk_source ON chunk FIELDS source_url;
    DEFINE INDEX IF NOT EXISTS chunk_embedding ON chunk FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;

    -- ==========================================================================
    -- SOURCE TABLE (ingestion status records)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS source SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS url ON source TYPE string;
    DEFINE FIELD IF NOT EXISTS description ON source TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS status ON source TYPE string;
    DEFINE FIELD IF NOT EXISTS ingested_at ON source TYPE option<datetime>;
    DEFINE FIELD IF NOT EXISTS last_error ON source TYPE string DEFAULT "";
    DEFINE FIELD IF NOT EXISTS chunk_ids ON source TYPE array<string> DEFAULT [];
    DEFINE FIELD IF NOT EXISTS created ON source TYPE datetime DEFAULT time::now();

    DEFINE INDEX IF NOT EXISTS source_url_unique ON source FIELDS url UNIQUE;
`
