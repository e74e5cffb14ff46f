package database

// Timestamps are unix seconds so both dialects scan them into int64.

var mysqlSchema = []string{`
CREATE TABLE IF NOT EXISTS providers (
    id CHAR(36) PRIMARY KEY,
    nome VARCHAR(255) NOT NULL,
    whatsapp VARCHAR(32) NOT NULL UNIQUE,
    slug VARCHAR(96) NOT NULL UNIQUE,
    cidade VARCHAR(255) NOT NULL DEFAULT '',
    ativo TINYINT(1) NOT NULL DEFAULT 1,
    created_at BIGINT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS provider_subscriptions (
    provider_id CHAR(36) PRIMARY KEY,
    plano VARCHAR(32) NULL,
    adesao_paga TINYINT(1) NOT NULL DEFAULT 0,
    trial_ativo TINYINT(1) NOT NULL DEFAULT 1,
    trial_corridas_restantes INT NOT NULL DEFAULT 10,
    corridas_usadas INT NOT NULL DEFAULT 0,
    limite_corridas INT NOT NULL DEFAULT 0,
    mensalidade_atual DECIMAL(10,2) NOT NULL DEFAULT 0,
    proxima_cobranca BIGINT NULL,
    stripe_customer_id VARCHAR(255) NULL,
    stripe_subscription_id VARCHAR(255) NULL,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    CONSTRAINT chk_trial_remaining CHECK (trial_corridas_restantes >= 0),
    CONSTRAINT chk_rides_used CHECK (corridas_usadas >= 0),
    FOREIGN KEY (provider_id) REFERENCES providers(id)
)`, `
CREATE TABLE IF NOT EXISTS provider_customizations (
    provider_id CHAR(36) PRIMARY KEY,
    logo_url VARCHAR(1024) NOT NULL DEFAULT '',
    cor_primaria VARCHAR(16) NOT NULL DEFAULT '',
    cor_secundaria VARCHAR(16) NOT NULL DEFAULT '',
    nome_empresa VARCHAR(255) NOT NULL DEFAULT '',
    dominio_personalizado VARCHAR(255) NULL UNIQUE,
    updated_at BIGINT NOT NULL,
    FOREIGN KEY (provider_id) REFERENCES providers(id)
)`, `
CREATE TABLE IF NOT EXISTS payments (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    provider_id CHAR(36) NOT NULL,
    plano VARCHAR(32) NOT NULL,
    provider VARCHAR(32) NOT NULL,
    session_id VARCHAR(255) NOT NULL UNIQUE,
    currency VARCHAR(8) NOT NULL,
    amount INT NOT NULL,
    status VARCHAR(16) NOT NULL,
    raw_payload TEXT,
    created_at BIGINT NOT NULL,
    updated_at BIGINT NOT NULL,
    INDEX idx_payments_provider_status (provider_id, status),
    FOREIGN KEY (provider_id) REFERENCES providers(id)
)`,
}

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS providers (
    id TEXT PRIMARY KEY,
    nome TEXT NOT NULL,
    whatsapp TEXT NOT NULL UNIQUE,
    slug TEXT NOT NULL UNIQUE,
    cidade TEXT NOT NULL DEFAULT '',
    ativo INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS provider_subscriptions (
    provider_id TEXT PRIMARY KEY REFERENCES providers(id),
    plano TEXT NULL,
    adesao_paga INTEGER NOT NULL DEFAULT 0,
    trial_ativo INTEGER NOT NULL DEFAULT 1,
    trial_corridas_restantes INTEGER NOT NULL DEFAULT 10 CHECK (trial_corridas_restantes >= 0),
    corridas_usadas INTEGER NOT NULL DEFAULT 0 CHECK (corridas_usadas >= 0),
    limite_corridas INTEGER NOT NULL DEFAULT 0,
    mensalidade_atual REAL NOT NULL DEFAULT 0,
    proxima_cobranca INTEGER NULL,
    stripe_customer_id TEXT NULL,
    stripe_subscription_id TEXT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS provider_customizations (
    provider_id TEXT PRIMARY KEY REFERENCES providers(id),
    logo_url TEXT NOT NULL DEFAULT '',
    cor_primaria TEXT NOT NULL DEFAULT '',
    cor_secundaria TEXT NOT NULL DEFAULT '',
    nome_empresa TEXT NOT NULL DEFAULT '',
    dominio_personalizado TEXT NULL UNIQUE,
    updated_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS payments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    provider_id TEXT NOT NULL REFERENCES providers(id),
    plano TEXT NOT NULL,
    provider TEXT NOT NULL,
    session_id TEXT NOT NULL UNIQUE,
    currency TEXT NOT NULL,
    amount INTEGER NOT NULL,
    status TEXT NOT NULL,
    raw_payload TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_provider_status ON payments(provider_id, status)`,
}
