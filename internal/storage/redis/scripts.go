package redis

const (
	// blockUntilScript records a blocked-until timestamp, keeping a later existing one
	blockUntilScript = `
local blocks_key = KEYS[1]      -- timeguardian:blocked_apps
local app = ARGV[1]
local until_ms = tonumber(ARGV[2])

local current = redis.call('HGET', blocks_key, app)
if current and tonumber(current) >= until_ms then
  return tonumber(current)
end

redis.call('HSET', blocks_key, app, until_ms)
return until_ms
`

	// deleteExpiredBlocksScript removes every block that ended at or before now
	deleteExpiredBlocksScript = `
local blocks_key = KEYS[1]      -- timeguardian:blocked_apps
local now_ms = tonumber(ARGV[1])

local entries = redis.call('HGETALL', blocks_key)
local deleted = 0

for i = 1, #entries, 2 do
  local app = entries[i]
  local until_ms = tonumber(entries[i + 1])
  if until_ms == nil or until_ms <= now_ms then
    redis.call('HDEL', blocks_key, app)
    deleted = deleted + 1
  end
end

return deleted
`
)
