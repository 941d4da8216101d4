package ldap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-ldap/ldap/v3"
	"github.com/hashicorp/terraform-plugin-log/tflog"
)

// MaxConnectionPoolLimit is the maximum allowed connections in a pool.
const MaxConnectionPoolLimit = 100

// reauthInterval is how long a pooled bind is trusted before rebinding.
const reauthInterval = 5 * time.Minute

// dialFunc opens a raw connection to one server.
type dialFunc func(ctx context.Context, server *ServerInfo, config *ConnectionConfig) (*ldap.Conn, error)

// connectionPool implements ConnectionPool.
type connectionPool struct {
	ctx         context.Context // Logging context with LDAP subsystem
	config      *ConnectionConfig
	servers     []*ServerInfo
	connections chan *PooledConnection
	mu          sync.RWMutex
	closed      bool
	discovery   *SRVDiscovery
	dial        dialFunc

	activeConns  int64
	totalCreated int64
	totalErrors  int64
	startTime    time.Time

	healthTicker *time.Ticker
	healthStop   chan struct{}
	healthWg     sync.WaitGroup
}

// NewConnectionPool creates a new connection pool and resolves its servers.
func NewConnectionPool(ctx context.Context, config *ConnectionConfig) (ConnectionPool, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	tlsConfig, err := buildTLSConfig(config)
	if err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	config.TLSConfig = tlsConfig

	pool := &connectionPool{
		ctx:         ctx,
		config:      config,
		connections: make(chan *PooledConnection, config.MaxConnections),
		discovery:   NewSRVDiscovery(ctx),
		dial:        dialServer,
		startTime:   time.Now(),
		healthStop:  make(chan struct{}),
	}

	if err := pool.discoverServers(ctx); err != nil {
		return nil, fmt.Errorf("server discovery failed: %w", err)
	}

	if config.HealthCheck > 0 {
		pool.startHealthChecker()
	}

	LogPoolEvent(ctx, "pool_created", map[string]any{
		"server_count":    len(pool.servers),
		"max_connections": config.MaxConnections,
	})
	return pool, nil
}

// discoverServers resolves configured URLs or runs SRV discovery for the domain.
func (p *connectionPool) discoverServers(ctx context.Context) error {
	var servers []*ServerInfo

	switch {
	case len(p.config.LDAPURLs) > 0:
		for _, url := range p.config.LDAPURLs {
			server, err := ParseLDAPURL(url)
			if err != nil {
				return fmt.Errorf("invalid LDAP URL %s: %w", url, err)
			}
			servers = append(servers, server)
		}
	case p.config.Domain != "":
		discoveryCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		discovered, err := p.discovery.DiscoverServers(discoveryCtx, p.config.Domain)
		if err != nil {
			return fmt.Errorf("SRV discovery failed: %w", err)
		}
		servers = discovered
	default:
		return errors.New("either domain or LDAP URLs must be specified")
	}

	if len(servers) == 0 {
		return errors.New("no servers discovered")
	}

	p.mu.Lock()
	p.servers = servers
	p.mu.Unlock()

	tflog.SubsystemDebug(p.ctx, SubsystemLDAP, "Servers resolved", map[string]any{
		"server_count": len(servers),
		"source":       servers[0].Source,
	})
	return nil
}

// Get retrieves a connection from the pool, dialing a new one when none is idle.
func (p *connectionPool) Get(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return nil, errors.New("connection pool is closed")
	}

	for {
		select {
		case conn := <-p.connections:
			if !p.isConnectionHealthy(conn) {
				p.closeConnection(conn)
				continue
			}
			if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
				if err := p.authenticateConnection(ctx, conn); err != nil {
					p.closeConnection(conn)
					continue
				}
			}
			conn.lastUsed = time.Now()
			atomic.AddInt64(&p.activeConns, 1)
			return conn, nil
		default:
			return p.createConnection(ctx)
		}
	}
}

// createConnection dials the known servers in order, retrying the whole list with backoff.
func (p *connectionPool) createConnection(ctx context.Context) (*PooledConnection, error) {
	p.mu.RLock()
	servers := p.servers
	p.mu.RUnlock()

	var lastErr error
	conn, err := backoff.RetryWithData(func() (*PooledConnection, error) {
		for _, server := range servers {
			conn, err := p.createSingleConnection(ctx, server)
			if err != nil {
				lastErr = err
				atomic.AddInt64(&p.totalErrors, 1)
				LogConnectionEvent(ctx, "connection_failed", map[string]any{
					"server": ServerInfoToURL(server),
					"error":  err.Error(),
				})
				if IsAuthenticationError(err) {
					return nil, backoff.Permanent(err)
				}
				continue
			}
			return conn, nil
		}
		return nil, lastErr
	}, newBackOff(ctx, p.config))

	if err != nil {
		if IsAuthenticationError(err) {
			return nil, err
		}
		return nil, NewConnectionError("failed to create connection after retries", true, err)
	}

	atomic.AddInt64(&p.totalCreated, 1)
	atomic.AddInt64(&p.activeConns, 1)
	LogConnectionEvent(ctx, "connection_established", map[string]any{
		"server": ServerInfoToURL(conn.serverInfo),
	})
	return conn, nil
}

// createSingleConnection dials one server and binds it when credentials are configured.
func (p *connectionPool) createSingleConnection(ctx context.Context, server *ServerInfo) (*PooledConnection, error) {
	conn, err := p.dial(ctx, server, p.config)
	if err != nil {
		return nil, err
	}

	pooled := &PooledConnection{
		conn:         conn,
		lastUsed:     time.Now(),
		healthy:      true,
		serverInfo:   server,
		returnToPool: p.returnConnection,
	}

	if p.config.HasAuthentication() {
		if err := p.authenticateConnection(ctx, pooled); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to authenticate connection to %s: %w", ServerInfoToURL(server), err)
		}
	}

	return pooled, nil
}

// dialServer opens an LDAPS connection or an LDAP connection upgraded with StartTLS.
func dialServer(_ context.Context, server *ServerInfo, config *ConnectionConfig) (*ldap.Conn, error) {
	url := ServerInfoToURL(server)

	var conn *ldap.Conn
	var err error

	if server.UseTLS {
		conn, err = ldap.DialURL(url, ldap.DialWithTLSConfig(config.TLSConfig))
	} else {
		conn, err = ldap.DialURL(url)
		if err == nil && config.UseTLS && !config.SkipTLS {
			if tlsErr := conn.StartTLS(config.TLSConfig); tlsErr != nil {
				conn.Close()
				err = tlsErr
			}
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetTimeout(config.Timeout)
	return conn, nil
}

// authenticateConnection binds a pooled connection using the configured method.
func (p *connectionPool) authenticateConnection(ctx context.Context, pooled *PooledConnection) error {
	if pooled == nil || pooled.conn == nil {
		return errors.New("connection is nil")
	}

	authMethod := p.config.GetAuthMethod()
	var err error

	switch authMethod {
	case AuthMethodSimpleBind:
		if p.config.Username == "" {
			return errors.New("username is required for simple bind authentication")
		}
		err = pooled.conn.Bind(p.config.Username, p.config.Password)
	case AuthMethodKerberos:
		err = performKerberosAuth(ctx, pooled.conn, p.config, pooled.serverInfo)
	case AuthMethodExternal:
		err = pooled.conn.ExternalBind()
	default:
		return fmt.Errorf("unsupported authentication method: %s", authMethod.String())
	}

	if err != nil {
		pooled.authenticated = false
		pooled.authTime = time.Time{}
		LogConnectionEvent(ctx, "authentication_failed", map[string]any{
			"auth_method": authMethod.String(),
			"username":    p.config.Username,
			"error":       err.Error(),
		})
		return NewLDAPError("bind", err)
	}

	pooled.authenticated = true
	pooled.authTime = time.Now()
	LogConnectionEvent(ctx, "authentication_success", map[string]any{
		"auth_method": authMethod.String(),
		"username":    p.config.Username,
	})
	return nil
}

func (p *connectionPool) needsReAuthentication(conn *PooledConnection) bool {
	if conn == nil || !conn.authenticated {
		return true
	}
	return time.Since(conn.authTime) > reauthInterval
}

// returnConnection returns a connection to the pool.
func (p *connectionPool) returnConnection(conn *PooledConnection) {
	if conn == nil {
		return
	}

	atomic.AddInt64(&p.activeConns, -1)

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed || !p.isConnectionHealthy(conn) {
		p.closeConnection(conn)
		return
	}

	select {
	case p.connections <- conn:
	default:
		// Pool is full
		p.closeConnection(conn)
	}
}

func (p *connectionPool) isConnectionHealthy(conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil || !conn.healthy || conn.conn.IsClosing() {
		return false
	}

	if time.Since(conn.lastUsed) > p.config.MaxIdleTime {
		return false
	}

	if p.config.HasAuthentication() && !conn.authenticated {
		return false
	}

	return true
}

func (p *connectionPool) closeConnection(conn *PooledConnection) {
	if conn != nil && conn.conn != nil {
		conn.conn.Close()
		conn.healthy = false
		conn.authenticated = false
		conn.authTime = time.Time{}
	}
}

// Close closes all connections and shuts down the pool.
func (p *connectionPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	// The health checker returns connections under the read lock.
	if p.healthTicker != nil {
		close(p.healthStop)
		p.healthWg.Wait()
		p.healthTicker.Stop()
	}

	p.mu.Lock()
	close(p.connections)
	for conn := range p.connections {
		p.closeConnection(conn)
	}
	p.mu.Unlock()

	LogPoolEvent(p.ctx, "pool_closed", map[string]any{
		"uptime": time.Since(p.startTime).String(),
	})
	return nil
}

// Stats returns pool statistics.
func (p *connectionPool) Stats() PoolStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idle := len(p.connections)
	active := atomic.LoadInt64(&p.activeConns)

	return PoolStats{
		Total:   idle + int(active),
		Active:  active,
		Idle:    idle,
		Created: atomic.LoadInt64(&p.totalCreated),
		Errors:  atomic.LoadInt64(&p.totalErrors),
		Uptime:  time.Since(p.startTime),
	}
}

// HealthCheck tests the idle connections and drops the broken ones.
func (p *connectionPool) HealthCheck(ctx context.Context) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return errors.New("pool is closed")
	}

	p.checkIdleConnections(ctx, cap(p.connections))
	return nil
}

func (p *connectionPool) startHealthChecker() {
	p.healthTicker = time.NewTicker(p.config.HealthCheck)

	p.healthWg.Go(func() {
		for {
			select {
			case <-p.healthTicker.C:
				ctx, cancel := context.WithTimeout(p.ctx, p.config.Timeout)
				p.checkIdleConnections(ctx, 3)
				cancel()
			case <-p.healthStop:
				return
			}
		}
	})
}

// checkIdleConnections tests up to limit idle connections.
func (p *connectionPool) checkIdleConnections(ctx context.Context, limit int) {
	var toCheck []*PooledConnection

drain:
	for range limit {
		select {
		case conn, ok := <-p.connections:
			if !ok {
				break drain
			}
			toCheck = append(toCheck, conn)
		default:
			break drain
		}
	}

	for _, conn := range toCheck {
		if !p.testConnection(ctx, conn) {
			p.closeConnection(conn)
			LogPoolEvent(ctx, "health_check_failed", map[string]any{
				"server": ServerInfoToURL(conn.serverInfo),
			})
			continue
		}

		// Balance the decrement in returnConnection
		atomic.AddInt64(&p.activeConns, 1)
		p.returnConnection(conn)
	}
}

// testConnection reads the root DSE to verify the connection and its bind.
func (p *connectionPool) testConnection(ctx context.Context, conn *PooledConnection) bool {
	if conn == nil || conn.conn == nil {
		return false
	}

	if p.config.HasAuthentication() && p.needsReAuthentication(conn) {
		if err := p.authenticateConnection(ctx, conn); err != nil {
			return false
		}
	}

	if _, err := conn.conn.Search(rootDSERequest("defaultNamingContext")); err != nil {
		conn.authenticated = false
		conn.authTime = time.Time{}
		return false
	}

	conn.lastUsed = time.Now()
	return true
}

// validateConfig validates the connection configuration.
func validateConfig(config *ConnectionConfig) error {
	if config.MaxConnections <= 0 {
		return errors.New("MaxConnections must be positive")
	}

	if config.MaxConnections > MaxConnectionPoolLimit {
		return fmt.Errorf("MaxConnections too high (max %d)", MaxConnectionPoolLimit)
	}

	if config.MaxIdleTime <= 0 {
		return errors.New("MaxIdleTime must be positive")
	}

	if config.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}

	if config.MaxRetries < 0 {
		return errors.New("MaxRetries cannot be negative")
	}

	if config.BackoffFactor <= 1.0 {
		return errors.New("BackoffFactor must be greater than 1.0")
	}

	if config.Domain == "" && len(config.LDAPURLs) == 0 {
		return errors.New("either domain or LDAP URLs must be specified")
	}

	return nil
}

// rootDSERequest builds a base-scope search against the root DSE.
func rootDSERequest(attributes ...string) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		"",
		ldap.ScopeBaseObject,
		ldap.NeverDerefAliases,
		1, 5, false,
		"(objectClass=*)",
		attributes,
		nil,
	)
}

// Close returns the connection to its pool.
func (pc *PooledConnection) Close() {
	if pc.returnToPool != nil {
		pc.returnToPool(pc)
	}
}

func (pc *PooledConnection) Conn() *ldap.Conn {
	return pc.conn
}

func (pc *PooledConnection) ServerInfo() *ServerInfo {
	return pc.serverInfo
}

func (pc *PooledConnection) IsHealthy() bool {
	return pc.healthy
}

func (pc *PooledConnection) LastUsed() time.Time {
	return pc.lastUsed
}
