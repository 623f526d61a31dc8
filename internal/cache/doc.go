// Package cache 实现远程内容的本地磁盘缓存：key（通常是 URL）经 sha256 派生出
// 固定长度的 EntryID，正文写入 <CacheDir>/<id>-<ttl>.cache，新鲜度完全由文件
// ModTime + 文件名中的 TTL 推导，因此进程重启后缓存依然有效。写入成功后若目录
// 条目数达到阈值会同步触发一次过期清理，在没有后台任务的情况下约束磁盘增长。
// 上层（server 路由、CLI）只依赖 Cache 门面的 Get/Set/Delete/Has 等操作，
// 远程抓取通过注入的 Fetcher 协作完成，文件原语由 Storage 适配器提供。
package cache
