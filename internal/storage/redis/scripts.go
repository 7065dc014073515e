package redis

const (
	// incrementDailyUsageScript atomically increments or creates daily usage
	incrementDailyUsageScript = `
local usage_key = KEYS[1]     -- limiter:usage:daily:{date}
local index_key = KEYS[2]     -- limiter:usage:daily:index

local date = ARGV[1]
local seconds = tonumber(ARGV[2])
local score = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

if redis.call('EXISTS', usage_key) == 0 then
  redis.call('HSET', usage_key,
    'date', date,
    'seconds', seconds
  )
  redis.call('EXPIRE', usage_key, ttl)

  -- Index by date so old entries can be pruned in order
  redis.call('ZADD', index_key, score, date)
else
  redis.call('HINCRBY', usage_key, 'seconds', seconds)
end

return redis.call('HGET', usage_key, 'seconds')
`

	// deleteDailyUsageBeforeScript removes every entry whose date scores below
	// the cutoff and returns how many dates were removed
	deleteDailyUsageBeforeScript = `
local index_key = KEYS[1]     -- limiter:usage:daily:index

local prefix = ARGV[1]
local cutoff = ARGV[2]        -- exclusive, e.g. "(20300103"

local dates = redis.call('ZRANGEBYSCORE', index_key, '-inf', cutoff)
for _, date in ipairs(dates) do
  redis.call('DEL', prefix .. date)
  redis.call('ZREM', index_key, date)
end

return #dates
`
)
